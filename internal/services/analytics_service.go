package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"wdicli/internal/analytics"
	"wdicli/internal/config"
	"wdicli/internal/dataset"
	"wdicli/internal/detection"
	"wdicli/internal/dune"
	"wdicli/internal/infrastructure"
	"wdicli/internal/ingest"
)

// Dataset sources.
const (
	SourceUpload = "upload"
	SourceDune   = "dune"
)

const defaultTopN = 10

// DuneRunner abstracts the Dune client so tests can stub it.
type DuneRunner interface {
	RunQuery(ctx context.Context, queryID int, parameters map[string]string) (*dataset.Dataset, error)
}

// AnalyticsService owns the dataset store and the analysis workflows:
// ingest, profile, prepare and the four aggregate views.
type AnalyticsService struct {
	store    *DatasetStore
	registry *detection.Registry
	dune     DuneRunner
	metrics  *infrastructure.Metrics
	limits   config.LimitsConfig
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAnalyticsService creates the service. duneClient may be nil when no
// API key is configured; metrics may be nil in tests.
func NewAnalyticsService(store *DatasetStore, registry *detection.Registry, duneClient DuneRunner, metrics *infrastructure.Metrics, limits config.LimitsConfig, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		store:    store,
		registry: registry,
		dune:     duneClient,
		metrics:  metrics,
		limits:   limits,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "analytics_service")),
	}
}

// Ingest reads a tabular file, profiles it and stores it. format is
// "csv" or "xlsx".
func (s *AnalyticsService) Ingest(ctx context.Context, name, format string, r io.Reader) (*StoredDataset, error) {
	var (
		ds  *dataset.Dataset
		err error
	)
	switch strings.ToLower(format) {
	case "csv":
		ds, err = ingest.ReadCSV(r)
	case "xlsx", "excel":
		ds, err = ingest.ReadExcel(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetMalformed, err)
	}

	return s.admit(ctx, name, SourceUpload, format, ds)
}

// DuneFetchRequest asks the service to run a saved Dune query and store
// its result as a dataset.
type DuneFetchRequest struct {
	QueryID    int               `json:"query_id" validate:"required,gt=0"`
	Parameters map[string]string `json:"parameters"`
	Name       string            `json:"name"`
}

// FetchFromDune executes a Dune query and stores the result rows. Returns
// dune.ErrMissingAPIKey when no client is configured.
func (s *AnalyticsService) FetchFromDune(ctx context.Context, req DuneFetchRequest) (*StoredDataset, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if s.dune == nil {
		return nil, dune.ErrMissingAPIKey
	}

	ds, err := s.dune.RunQuery(ctx, req.QueryID, req.Parameters)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("dune-query-%d", req.QueryID)
	}
	return s.admit(ctx, name, SourceDune, "dune", ds)
}

// admit profiles a dataset and places it in the store.
func (s *AnalyticsService) admit(ctx context.Context, name, source, format string, ds *dataset.Dataset) (*StoredDataset, error) {
	entry := &StoredDataset{
		Name:    name,
		Source:  source,
		Rows:    ds.NumRows(),
		Columns: ds.ColumnNames(),
		Profile: Profile{
			Candidates: detection.Classify(ds),
			Match:      detection.Detect(s.registry, ds),
		},
		Dataset: ds,
	}

	id, err := s.store.Put(entry)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DatasetsIngested.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("format", format),
		))
	}
	s.logger.InfoContext(ctx, "dataset admitted",
		slog.String("dataset_id", id),
		slog.String("name", name),
		slog.String("source", source),
		slog.Int("rows", entry.Rows),
		slog.Int("columns", len(entry.Columns)),
		slog.String("template", entry.Profile.Match.TemplateID),
	)
	return entry, nil
}

// Dataset returns a stored dataset by ID.
func (s *AnalyticsService) Dataset(ctx context.Context, id string) (*StoredDataset, error) {
	return s.store.Get(id)
}

// ListDatasets returns all stored datasets, newest first.
func (s *AnalyticsService) ListDatasets(ctx context.Context) []*StoredDataset {
	return s.store.List()
}

// DeleteDataset removes a stored dataset.
func (s *AnalyticsService) DeleteDataset(ctx context.Context, id string) error {
	return s.store.Delete(id)
}

// AnalysisRequest selects the role columns and filters for an analysis.
// Empty role columns fall back to the profile's suggestions.
type AnalysisRequest struct {
	TimestampColumn string     `json:"timestamp_column"`
	IdentityColumn  string     `json:"identity_column"`
	ValueColumn     string     `json:"value_column"`
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	TopN            int        `json:"top_n" validate:"omitempty,gt=0"`
}

// roleMapping is the resolved column assignment for one analysis run.
type roleMapping struct {
	timestamp string
	identity  string
	value     string
}

// resolve fills unset roles from the stored profile: the template
// suggestion first, then the first classifier candidate.
func resolveRoles(req AnalysisRequest, p Profile) roleMapping {
	m := roleMapping{
		timestamp: req.TimestampColumn,
		identity:  req.IdentityColumn,
		value:     req.ValueColumn,
	}
	if m.timestamp == "" {
		m.timestamp = p.Match.Suggestions.Timestamp
	}
	if m.timestamp == "" && len(p.Candidates.Timestamps) > 0 {
		m.timestamp = p.Candidates.Timestamps[0]
	}
	if m.identity == "" {
		m.identity = p.Match.Suggestions.Identity
	}
	if m.identity == "" && len(p.Candidates.Identities) > 0 {
		m.identity = p.Candidates.Identities[0]
	}
	if m.value == "" {
		m.value = p.Match.Suggestions.Value
	}
	if m.value == "" && len(p.Candidates.Values) > 0 {
		m.value = p.Candidates.Values[0]
	}
	return m
}

// prepared loads a dataset, resolves roles and applies the timestamp
// normalization and date-range filter.
func (s *AnalyticsService) prepared(ctx context.Context, id string, req AnalysisRequest) (*dataset.Dataset, roleMapping, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, roleMapping{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.Start != nil && req.End != nil && req.End.Before(*req.Start) {
		return nil, roleMapping{}, fmt.Errorf("%w: end before start", ErrInvalidInput)
	}

	entry, err := s.store.Get(id)
	if err != nil {
		return nil, roleMapping{}, err
	}

	roles := resolveRoles(req, entry.Profile)
	ds, err := analytics.Prepare(entry.Dataset, roles.timestamp, req.Start, req.End)
	if err != nil && !errors.Is(err, analytics.ErrMissingColumn) {
		return nil, roles, err
	}
	return ds, roles, nil
}

// AnalysisResult bundles the four aggregate views over one dataset.
// Warnings carry per-view recoverable conditions (missing role columns,
// not enough cohort weeks) that did not abort the run.
type AnalysisResult struct {
	DatasetID  string                      `json:"dataset_id"`
	Roles      RoleAssignment              `json:"roles"`
	Summary    analytics.Summary           `json:"summary"`
	TimeSeries []analytics.TimeSeriesPoint `json:"time_series"`
	Top        []analytics.TopEntry        `json:"top_addresses"`
	Cohort     *analytics.CohortMatrix     `json:"cohort,omitempty"`
	Warnings   []string                    `json:"warnings,omitempty"`
}

// RoleAssignment reports which columns an analysis actually used.
type RoleAssignment struct {
	Timestamp string `json:"timestamp_column"`
	Identity  string `json:"identity_column"`
	Value     string `json:"value_column"`
}

// Analyze computes all four views concurrently over a prepared dataset.
// Per-view recoverable errors become warnings; only store and input
// errors fail the call.
func (s *AnalyticsService) Analyze(ctx context.Context, id string, req AnalysisRequest) (*AnalysisResult, error) {
	start := time.Now()
	ds, roles, err := s.prepared(ctx, id, req)
	if err != nil {
		return nil, err
	}

	topN := req.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	if s.limits.MaxTopN > 0 && topN > s.limits.MaxTopN {
		topN = s.limits.MaxTopN
	}

	result := &AnalysisResult{
		DatasetID: id,
		Roles: RoleAssignment{
			Timestamp: roles.timestamp,
			Identity:  roles.identity,
			Value:     roles.value,
		},
	}

	var (
		summaryErr, seriesErr, topErr, cohortErr error
		cohort                                   analytics.CohortMatrix
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Summary, summaryErr = analytics.ComputeSummary(ds, roles.timestamp, roles.identity, roles.value)
		return gctx.Err()
	})
	g.Go(func() error {
		result.TimeSeries, seriesErr = analytics.BuildTimeSeries(ds, roles.timestamp, roles.value)
		return gctx.Err()
	})
	g.Go(func() error {
		result.Top, topErr = analytics.BuildTopAddresses(ds, roles.identity, roles.value, topN)
		return gctx.Err()
	})
	g.Go(func() error {
		cohort, cohortErr = analytics.BuildCohortRetention(ds, roles.timestamp, roles.identity)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, viewErr := range []struct {
		view string
		err  error
	}{
		{"summary", summaryErr},
		{"time_series", seriesErr},
		{"top_addresses", topErr},
		{"cohort", cohortErr},
	} {
		if viewErr.err != nil {
			result.Warnings = append(result.Warnings, viewErr.view+": "+viewErr.err.Error())
		}
	}
	if cohortErr == nil {
		result.Cohort = &cohort
	}

	if s.metrics != nil {
		s.metrics.AnalysesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("view", "all")))
		s.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("view", "all")))
	}
	s.logger.InfoContext(ctx, "analysis completed",
		slog.String("dataset_id", id),
		slog.Int("rows", ds.NumRows()),
		slog.Int("warnings", len(result.Warnings)),
		slog.String("duration", time.Since(start).String()),
	)
	return result, nil
}

// Summary computes the KPI summary view.
func (s *AnalyticsService) Summary(ctx context.Context, id string, req AnalysisRequest) (analytics.Summary, RoleAssignment, error) {
	ds, roles, err := s.prepared(ctx, id, req)
	if err != nil {
		return analytics.Summary{}, RoleAssignment{}, err
	}
	out, err := analytics.ComputeSummary(ds, roles.timestamp, roles.identity, roles.value)
	s.recordView(ctx, "summary")
	return out, roleAssignment(roles), err
}

// TimeSeries computes the daily activity view.
func (s *AnalyticsService) TimeSeries(ctx context.Context, id string, req AnalysisRequest) ([]analytics.TimeSeriesPoint, RoleAssignment, error) {
	ds, roles, err := s.prepared(ctx, id, req)
	if err != nil {
		return nil, RoleAssignment{}, err
	}
	out, err := analytics.BuildTimeSeries(ds, roles.timestamp, roles.value)
	s.recordView(ctx, "time_series")
	return out, roleAssignment(roles), err
}

// TopAddresses computes the leaderboard view.
func (s *AnalyticsService) TopAddresses(ctx context.Context, id string, req AnalysisRequest) ([]analytics.TopEntry, RoleAssignment, error) {
	ds, roles, err := s.prepared(ctx, id, req)
	if err != nil {
		return nil, RoleAssignment{}, err
	}
	topN := req.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	if s.limits.MaxTopN > 0 && topN > s.limits.MaxTopN {
		topN = s.limits.MaxTopN
	}
	out, err := analytics.BuildTopAddresses(ds, roles.identity, roles.value, topN)
	s.recordView(ctx, "top_addresses")
	return out, roleAssignment(roles), err
}

// CohortRetention computes the weekly retention view.
func (s *AnalyticsService) CohortRetention(ctx context.Context, id string, req AnalysisRequest) (analytics.CohortMatrix, RoleAssignment, error) {
	ds, roles, err := s.prepared(ctx, id, req)
	if err != nil {
		return analytics.CohortMatrix{}, RoleAssignment{}, err
	}
	out, err := analytics.BuildCohortRetention(ds, roles.timestamp, roles.identity)
	s.recordView(ctx, "cohort")
	return out, roleAssignment(roles), err
}

func (s *AnalyticsService) recordView(ctx context.Context, view string) {
	if s.metrics == nil {
		return
	}
	s.metrics.AnalysesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("view", view)))
}

func roleAssignment(r roleMapping) RoleAssignment {
	return RoleAssignment{Timestamp: r.timestamp, Identity: r.identity, Value: r.value}
}
