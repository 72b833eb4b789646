// Package pipeline implements the ingestion-and-quality pipeline: one
// trigger event in, one loaded, analyzed, optionally remediated and
// validated table out.
package pipeline

import (
	"context"
	"fmt"

	"github.com/cortexai/ingest/internal/models"
	"github.com/cortexai/ingest/internal/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReportSink receives quality reports for observability. Sink failures
// must never break ingestion.
type ReportSink interface {
	IndexReport(ctx context.Context, invocationID string, report *models.QualityReport) error
}

// Options carries the invocation-independent pipeline configuration.
type Options struct {
	ProjectID       string
	SampleRows      int
	MaxBadRecords   int64
	Policy          retry.Policy
	Thresholds      Thresholds
	Strategy        Strategy
	EnableCleaning  bool
	RowTolerancePct float64
	TargetColumn    string
}

// Pipeline wires the stages in dependency order. All clients are
// constructed by the caller and passed in; nothing global.
type Pipeline struct {
	opts    Options
	objects ObjectStore
	store   Store

	provisioner *Provisioner
	loader      *Loader
	analyzer    *Analyzer
	cleaner     *Cleaner
	backups     *BackupManager
	validator   *Validator

	sink     ReportSink       // optional
	notifier TrainingNotifier // optional
}

func New(store Store, objects ObjectStore, opts Options) *Pipeline {
	return &Pipeline{
		opts:        opts,
		objects:     objects,
		store:       store,
		provisioner: NewProvisioner(store, opts.Policy),
		loader:      NewLoader(store, opts.Policy, opts.MaxBadRecords),
		analyzer:    NewAnalyzer(store),
		cleaner:     NewCleaner(store),
		backups:     NewBackupManager(store),
		validator:   NewValidator(store),
	}
}

// WithSink attaches an optional quality-report sink.
func (p *Pipeline) WithSink(sink ReportSink) *Pipeline {
	p.sink = sink
	return p
}

// WithNotifier attaches the downstream training trigger.
func (p *Pipeline) WithNotifier(n TrainingNotifier) *Pipeline {
	p.notifier = n
	return p
}

// Run executes one invocation for one storage event. It never panics
// through and never returns a Go error: every terminal condition is
// expressed in the RunResult, most of them as graceful degradation.
func (p *Pipeline) Run(ctx context.Context, event models.TriggerEvent) *models.RunResult {
	res := &models.RunResult{InvocationID: uuid.NewString()}
	logger := log.With().Str("invocation", res.InvocationID).Str("object", event.Name).Logger()
	logger.Info().Str("bucket", event.Bucket).Msg("triggered")

	if !IsCSV(event.Name) {
		logger.Info().Msg("skipping non-CSV file")
		res.Status = models.StatusSkipped
		return res
	}

	req, err := ParseObjectName(event.Bucket, event.Name)
	if err != nil {
		return p.fail(res, &logger, err)
	}
	logger.Info().
		Str("dataset", req.DatasetID).
		Str("table", req.TableID).
		Str("mode", string(req.Mode)).
		Msg("parsed trigger filename")

	schema, err := p.inferSchema(ctx, req)
	if err != nil {
		return p.fail(res, &logger, err)
	}
	res.ColumnCount = len(schema.Columns)

	if err := p.provisioner.EnsureDataset(ctx, req.DatasetID); err != nil {
		return p.fail(res, &logger, err)
	}

	tableRef := fmt.Sprintf("%s.%s.%s", p.opts.ProjectID, req.DatasetID, req.TableID)
	res.TableRef = tableRef

	outcome, err := p.loader.Load(ctx, req, schema, tableRef)
	if err != nil {
		if models.IsKind(err, models.KindLoadConflict) {
			logger.Warn().Err(err).Msg("create mode against existing table, nothing loaded")
			res.Status = models.StatusConflict
			res.ErrorKind = models.KindLoadConflict
			res.Message = err.Error()
			return res
		}
		return p.fail(res, &logger, err)
	}
	res.RowsLoaded = outcome.RowsLoaded

	if outcome.Degraded || outcome.RowsLoaded == 0 {
		logger.Warn().Msg("load verification exhausted with empty table")
		res.Status = models.StatusEmptyTable
		if outcome.Degraded {
			res.Status = models.StatusDegraded
			res.ErrorKind = models.KindVerificationTimeout
		}
		return res
	}

	report, err := p.analyzer.Analyze(ctx, tableRef, schema.Names())
	if err != nil {
		logger.Error().Err(err).Msg("quality analysis failed")
	}
	if report == nil {
		res.Status = models.StatusEmptyTable
		return res
	}
	p.publishReport(ctx, &logger, res.InvocationID, report)

	if p.opts.EnableCleaning {
		p.clean(ctx, &logger, res, report, schema)
	}

	res.Status = models.StatusLoaded
	p.handoff(ctx, &logger, res, schema)
	logger.Info().Str("status", string(res.Status)).Msg("processing complete")
	return res
}

func (p *Pipeline) inferSchema(ctx context.Context, req *models.IngestionRequest) (models.InferredSchema, error) {
	rc, err := p.objects.Open(ctx, req.Bucket, req.Object)
	if err != nil {
		return models.InferredSchema{}, models.NewError(models.KindSchemaInference, "schema",
			fmt.Errorf("open gs://%s/%s: %w", req.Bucket, req.Object, err))
	}
	defer rc.Close()

	header, rows, err := SampleCSV(rc, p.opts.SampleRows)
	if err != nil {
		return models.InferredSchema{}, models.NewError(models.KindSchemaInference, "schema", err)
	}
	return InferSchema(header, rows)
}

func (p *Pipeline) publishReport(ctx context.Context, logger *zerolog.Logger, invocationID string, report *models.QualityReport) {
	if p.sink == nil {
		return
	}
	if err := p.sink.IndexReport(ctx, invocationID, report); err != nil {
		logger.Warn().Err(err).Msg("quality report sink failed")
	}
}

// clean runs the threshold-gated remediation. Failures here are fatal
// to the cleaning step only; the loaded table stands.
func (p *Pipeline) clean(ctx context.Context, logger *zerolog.Logger, res *models.RunResult, report *models.QualityReport, schema models.InferredSchema) {
	plan := BuildPlan(report, schema.Names(), p.opts.Thresholds)
	if plan.Empty() {
		logger.Info().Msg("no cleaning needed, data quality is acceptable")
		return
	}

	switch p.opts.Strategy {
	case StrategyCopy:
		outcome, err := p.cleaner.CleanCopy(ctx, res.TableRef, schema.Names(), report.TotalRows, p.opts.Thresholds)
		if err != nil {
			logger.Error().Err(err).Msg("copy-based cleaning failed, original table stands")
			res.ErrorKind = models.KindCleaningFailure
			res.Message = err.Error()
			return
		}
		res.CleanedRef = outcome.DestRef
		res.Cleaned = true
		res.RowsLoaded = p.validator.RowCount(ctx, outcome.DestRef)

	case StrategyInPlace:
		p.cleanInPlace(ctx, logger, res, plan, report.TotalRows)

	default:
		logger.Error().Str("strategy", string(p.opts.Strategy)).Msg("unknown cleaning strategy, skipping")
	}
}

// cleanInPlace is the backup-gated destructive path. No backup means no
// mutation; a failed or out-of-tolerance mutation is rolled back.
func (p *Pipeline) cleanInPlace(ctx context.Context, logger *zerolog.Logger, res *models.RunResult, plan models.CleaningPlan, originalCount int64) {
	backup := p.backups.CreateBackup(ctx, res.TableRef)
	if backup == nil {
		logger.Warn().Msg("backup unavailable, refusing destructive cleaning")
		return
	}

	if _, err := p.cleaner.CleanInPlace(ctx, plan); err != nil {
		logger.Error().Err(err).Msg("in-place cleaning failed, restoring backup")
		res.ErrorKind = models.KindCleaningFailure
		res.Message = err.Error()
		p.backups.Restore(ctx, backup)
		return
	}

	if !p.validator.Validate(ctx, res.TableRef, originalCount, p.opts.RowTolerancePct) {
		logger.Error().Msg("post-cleaning validation failed, restoring backup")
		res.ErrorKind = models.KindValidationFailure
		p.backups.Restore(ctx, backup)
		return
	}

	res.Cleaned = true
	res.RowsLoaded = p.validator.RowCount(ctx, res.TableRef)
	p.backups.Cleanup(ctx, backup)
}

// handoff gates the downstream training trigger: at least two columns,
// a non-empty table, and a schema that still matches expectations.
func (p *Pipeline) handoff(ctx context.Context, logger *zerolog.Logger, res *models.RunResult, schema models.InferredSchema) {
	if p.notifier == nil {
		return
	}
	if res.ColumnCount < 2 {
		logger.Warn().Msg("insufficient columns for training, handoff skipped")
		return
	}
	if res.RowsLoaded == 0 {
		logger.Warn().Msg("empty table, handoff skipped")
		return
	}

	target := res.TableRef
	if res.CleanedRef != "" {
		target = res.CleanedRef
	}
	switch p.validator.ValidateIntegrity(ctx, target, schema.Names()) {
	case models.IntegrityMissingColumns:
		logger.Warn().Msg("integrity check failed, handoff skipped")
		return
	case models.IntegrityUnknown:
		logger.Warn().Msg("integrity check inconclusive, proceeding with handoff")
	}

	if err := p.notifier.NotifyTableReady(ctx, target, p.opts.TargetColumn); err != nil {
		logger.Warn().Err(err).Msg("training trigger notification failed")
	}
}

func (p *Pipeline) fail(res *models.RunResult, logger *zerolog.Logger, err error) *models.RunResult {
	logger.Error().Err(err).Msg("invocation failed")
	res.Status = models.StatusFailed
	res.ErrorKind = models.KindOf(err)
	res.Message = err.Error()
	return res
}
