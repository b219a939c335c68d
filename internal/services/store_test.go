package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetStore_PutGetDelete(t *testing.T) {
	store := NewDatasetStore(4)

	id, err := store.Put(&StoredDataset{Name: "swaps.csv"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entry, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "swaps.csv", entry.Name)
	assert.Equal(t, id, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	require.NoError(t, store.Delete(id))
	_, err = store.Get(id)
	assert.ErrorIs(t, err, ErrDatasetNotFound)
	assert.ErrorIs(t, store.Delete(id), ErrDatasetNotFound)
}

func TestDatasetStore_CapacityEnforced(t *testing.T) {
	store := NewDatasetStore(2)

	_, err := store.Put(&StoredDataset{Name: "a"})
	require.NoError(t, err)
	_, err = store.Put(&StoredDataset{Name: "b"})
	require.NoError(t, err)

	_, err = store.Put(&StoredDataset{Name: "c"})
	assert.ErrorIs(t, err, ErrStoreFull)

	// Deleting frees a slot.
	id := store.List()[0].ID
	require.NoError(t, store.Delete(id))
	_, err = store.Put(&StoredDataset{Name: "c"})
	assert.NoError(t, err)
}

func TestDatasetStore_ListNewestFirst(t *testing.T) {
	store := NewDatasetStore(0)

	first, err := store.Put(&StoredDataset{Name: "first"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := store.Put(&StoredDataset{Name: "second"})
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
}

func TestDatasetStore_ConcurrentAccess(t *testing.T) {
	store := NewDatasetStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Put(&StoredDataset{Name: "ds"})
			assert.NoError(t, err)
			_, err = store.Get(id)
			assert.NoError(t, err)
			store.List()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
}
