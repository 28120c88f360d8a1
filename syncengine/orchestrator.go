package syncengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/booksync/config"
	"github.com/mmdatafocus/booksync/connector"
	"github.com/mmdatafocus/booksync/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const moduleName = "syncengine"

// ErrSyncAlreadyRunning means another run holds this organization's sync lock.
var ErrSyncAlreadyRunning = errors.New("a sync run is already in progress for this organization")

var tracer = otel.Tracer("github.com/mmdatafocus/booksync/syncengine")

type Options struct {
	// PageSize is passed to every connector fetch.
	PageSize int
	// FetchTimeout bounds a single connector page fetch.
	FetchTimeout time.Duration
	// RunTimeout is the wall-clock ceiling for one whole run; entity types
	// not started before the ceiling are recorded as errored.
	RunTimeout time.Duration
	// LockTTL is how long the per-organization lock may outlive a crashed
	// holder before another run can take over.
	LockTTL time.Duration
}

func DefaultOptions() Options {
	return Options{
		PageSize:     intFromEnv("SYNC_PAGE_SIZE", 200),
		FetchTimeout: time.Duration(intFromEnv("SYNC_FETCH_TIMEOUT_SECONDS", 60)) * time.Second,
		RunTimeout:   time.Duration(intFromEnv("SYNC_RUN_TIMEOUT_MINUTES", 30)) * time.Minute,
		LockTTL:      time.Duration(intFromEnv("SYNC_LOCK_TTL_MINUTES", 35)) * time.Minute,
	}
}

func intFromEnv(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// Engine orchestrates full sync runs: one connector per run, entity types in
// dependency order, one transaction per page, and a SyncRun audit row for
// every invocation.
type Engine struct {
	store   Store
	factory ConnectorFactory
	logger  *logrus.Logger
	opts    Options

	// lockerFn is resolved per run because Redis connects after startup;
	// when it yields nil the engine falls back to an in-process mutex set.
	lockerFn func() *redislock.Client

	mu        sync.Mutex
	localRuns map[string]bool
}

func NewEngine(store Store, factory ConnectorFactory, logger *logrus.Logger, opts Options) *Engine {
	if logger == nil {
		logger = config.GetLogger()
	}
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = def.FetchTimeout
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = def.RunTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = def.LockTTL
	}
	return &Engine{
		store:     store,
		factory:   factory,
		logger:    logger,
		opts:      opts,
		lockerFn:  config.GetRedisLock,
		localRuns: map[string]bool{},
	}
}

// RunFullSync creates a SyncRun for the organization and executes it
// synchronously. entityTypes narrows the run; empty means all types. A
// pre-run failure (no integration, lock already held) is returned as a Go
// error; connector and upsert failures land in the run's status and counts
// instead.
func (e *Engine) RunFullSync(ctx context.Context, organizationId string, entityTypes []connector.EntityType) (*models.SyncRun, error) {
	run, err := e.CreateRun(ctx, organizationId, entityTypes, models.SyncTriggeredManual, nil)
	if err != nil {
		return nil, err
	}
	out, err := e.executeRun(ctx, run)
	if err != nil {
		// Nobody re-dispatches a synchronous run, so a pre-run failure must
		// not leave its row pending forever.
		e.failRun(ctx, run, err)
		return nil, err
	}
	return out, nil
}

// CreateRun records a pending SyncRun without executing it. The run is
// executed later by ProcessQueuedRun, typically via a Pub/Sub push.
func (e *Engine) CreateRun(ctx context.Context, organizationId string, entityTypes []connector.EntityType, triggeredBy string, parentRunId *uint) (*models.SyncRun, error) {
	conn, err := e.store.GetConnection(ctx, organizationId)
	if err != nil {
		return nil, err
	}
	if conn == nil || conn.Status != models.IntegrationStatusConnected {
		return nil, models.ErrNoActiveIntegration
	}

	run := &models.SyncRun{
		OrganizationId:  organizationId,
		ConnectionId:    conn.ID,
		Source:          conn.Provider,
		SyncType:        syncTypeFor(entityTypes),
		EntityTypesJSON: models.EncodeEntityTypes(entityTypeNames(entityTypes)),
		Status:          models.SyncRunStatusPending,
		TriggeredBy:     triggeredBy,
		ParentRunId:     parentRunId,
	}
	if err := e.store.CreateSyncRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ProcessQueuedRun executes a previously created run. Redelivery of a run
// that already reached a terminal status is a no-op, so at-least-once push
// delivery is safe.
func (e *Engine) ProcessQueuedRun(ctx context.Context, organizationId string, runId uint) error {
	run, err := e.store.GetSyncRun(ctx, organizationId, runId)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("sync run %d not found for organization %s", runId, organizationId)
	}
	if run.IsTerminal() {
		e.logger.WithFields(logrus.Fields{
			"organization_id": organizationId,
			"run_id":          runId,
			"status":          run.Status,
		}).Info("skipping redelivered terminal sync run")
		return nil
	}
	_, err = e.executeRun(ctx, run)
	if err != nil {
		// Lock held by a concurrent run: leave the row pending so the
		// broker's redelivery executes it once the lock frees. Any other
		// pre-run failure is terminal for this run; mark it failed so it
		// surfaces in history and becomes retryable.
		if errors.Is(err, ErrSyncAlreadyRunning) {
			return err
		}
		e.failRun(ctx, run, err)
		return err
	}
	return nil
}

// failRun finalizes a run that never reached its entity loop, typically a
// connector construction failure. Terminal runs are left untouched.
func (e *Engine) failRun(ctx context.Context, run *models.SyncRun, cause error) {
	if run.IsTerminal() {
		return
	}
	now := time.Now()
	run.Status = models.SyncRunStatusFailed
	run.FinishedAt = &now
	if run.StartedAt != nil {
		run.DurationMs = now.Sub(*run.StartedAt).Milliseconds()
	}
	run.ErrorSummary = cause.Error()
	if err := e.store.UpdateSyncRun(ctx, run); err != nil {
		config.LogError(e.logger, moduleName, "failRun", "mark run failed", run.ID, err)
	}
}

// RetryRun queues a fresh run copying a failed or partial run's entity type
// selection, linked back through ParentRunId.
func (e *Engine) RetryRun(ctx context.Context, organizationId string, runId uint) (*models.SyncRun, error) {
	parent, err := e.store.GetSyncRun(ctx, organizationId, runId)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("sync run %d not found for organization %s", runId, organizationId)
	}
	if parent.Status != models.SyncRunStatusFailed && parent.Status != models.SyncRunStatusPartial {
		return nil, fmt.Errorf("sync run %d has status %s and cannot be retried", runId, parent.Status)
	}

	var types []connector.EntityType
	for _, name := range models.DecodeEntityTypes(parent.EntityTypesJSON) {
		if et, ok := connector.ParseEntityType(name); ok {
			types = append(types, et)
		}
	}
	parentId := parent.ID
	return e.CreateRun(ctx, organizationId, types, models.SyncTriggeredRetry, &parentId)
}

func (e *Engine) executeRun(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error) {
	release, err := e.acquireOrgLock(ctx, run.OrganizationId)
	if err != nil {
		return nil, err
	}
	defer release()

	ac, _, _, err := e.factory.ConnectorFor(ctx, run.OrganizationId)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ac.Close() }()

	ctx, span := tracer.Start(ctx, "sync.run", trace.WithAttributes(
		attribute.String("organization_id", run.OrganizationId),
		attribute.String("source", run.Source),
		attribute.Int64("run_id", int64(run.ID)),
	))
	defer span.End()

	started := time.Now()
	run.Status = models.SyncRunStatusRunning
	run.StartedAt = &started
	if err := e.store.UpdateSyncRun(ctx, run); err != nil {
		return nil, err
	}

	var updatedSince *time.Time
	if conn, err := e.store.GetConnection(ctx, run.OrganizationId); err == nil && conn != nil {
		updatedSince = conn.LastSuccessSyncAt
	}

	runCtx, cancel := context.WithTimeout(ctx, e.opts.RunTimeout)
	defer cancel()

	types := e.runEntityTypes(run)
	counts := map[string]models.EntityCounts{}
	var details []models.SyncErrorDetail

	for _, et := range types {
		if runCtx.Err() != nil {
			msg := fmt.Sprintf("run deadline exceeded before %s", et)
			counts[string(et)] = models.EntityCounts{Error: msg}
			details = append(details, models.SyncErrorDetail{EntityType: string(et), Error: msg})
			continue
		}
		etCounts, err := e.syncEntityType(runCtx, ac, run, et, updatedSince)
		if err != nil {
			config.LogError(e.logger, moduleName, "executeRun", string(et), nil, err)
			counts[string(et)] = models.EntityCounts{Error: err.Error()}
			details = append(details, models.SyncErrorDetail{EntityType: string(et), Error: err.Error()})
			continue
		}
		counts[string(et)] = etCounts
	}

	finished := time.Now()
	run.Status = runStatusFor(len(types), len(details))
	run.FinishedAt = &finished
	run.DurationMs = finished.Sub(started).Milliseconds()
	run.CountsJSON = models.EncodeCounts(counts)
	run.ErrorDetailsJSON = models.EncodeErrorDetails(details)
	run.ErrorSummary = errorSummary(details)
	if err := e.store.UpdateSyncRun(ctx, run); err != nil {
		return nil, err
	}

	if err := e.store.TouchConnectionSynced(ctx, run.ConnectionId, finished, run.Status == models.SyncRunStatusCompleted); err != nil {
		config.LogError(e.logger, moduleName, "executeRun", "touch connection", nil, err)
	}

	e.logger.WithFields(logrus.Fields{
		"organization_id": run.OrganizationId,
		"run_id":          run.ID,
		"status":          run.Status,
		"duration_ms":     run.DurationMs,
	}).Info("sync run finished")
	return run, nil
}

func (e *Engine) syncEntityType(ctx context.Context, ac connector.AccountingConnector, run *models.SyncRun, et connector.EntityType, updatedSince *time.Time) (models.EntityCounts, error) {
	ctx, span := tracer.Start(ctx, "sync."+string(et))
	defer span.End()

	scope := syncScope{organizationId: run.OrganizationId, source: run.Source}
	switch et {
	case connector.EntityAccounts:
		return syncPages(ctx, e, updatedSince, ac.FetchAccounts,
			func(ctx context.Context, st Store, dto connector.NormalizedAccount) (upsertOutcome, error) {
				return upsertAccount(ctx, st, scope, dto)
			})
	case connector.EntityCustomers:
		return syncPages(ctx, e, updatedSince, ac.FetchCustomers,
			func(ctx context.Context, st Store, dto connector.NormalizedContact) (upsertOutcome, error) {
				return upsertContact(ctx, st, scope, dto)
			})
	case connector.EntityVendors:
		return syncPages(ctx, e, updatedSince, ac.FetchVendors,
			func(ctx context.Context, st Store, dto connector.NormalizedContact) (upsertOutcome, error) {
				return upsertContact(ctx, st, scope, dto)
			})
	case connector.EntityInvoices:
		return syncPages(ctx, e, updatedSince, ac.FetchInvoices,
			func(ctx context.Context, st Store, dto connector.NormalizedInvoice) (upsertOutcome, error) {
				return upsertInvoice(ctx, st, scope, dto)
			})
	case connector.EntityBills:
		return syncPages(ctx, e, updatedSince, ac.FetchBills,
			func(ctx context.Context, st Store, dto connector.NormalizedBill) (upsertOutcome, error) {
				return upsertBill(ctx, st, scope, dto)
			})
	case connector.EntityPayments:
		return syncPages(ctx, e, updatedSince, ac.FetchPayments,
			func(ctx context.Context, st Store, dto connector.NormalizedPayment) (upsertOutcome, error) {
				return upsertPayment(ctx, st, scope, dto)
			})
	case connector.EntityBankTransactions:
		return syncPages(ctx, e, updatedSince, ac.FetchBankTransactions,
			func(ctx context.Context, st Store, dto connector.NormalizedBankTransaction) (upsertOutcome, error) {
				return upsertBankTransaction(ctx, st, scope, dto)
			})
	case connector.EntityJournalEntries:
		return syncPages(ctx, e, updatedSince, ac.FetchJournalEntries,
			func(ctx context.Context, st Store, dto connector.NormalizedJournalEntry) (upsertOutcome, error) {
				return upsertJournalEntry(ctx, st, scope, dto)
			})
	default:
		return models.EntityCounts{}, fmt.Errorf("unknown entity type %q", et)
	}
}

// syncPages walks one entity type's cursor pages. Each page is committed in
// its own transaction before the next fetch, so a failure on page N keeps
// pages 1..N-1. A page that reports more data without a cursor is a
// connector contract violation and fails the entity type.
func syncPages[T any](
	ctx context.Context,
	e *Engine,
	updatedSince *time.Time,
	fetch func(context.Context, connector.FetchOptions) (connector.FetchResult[T], error),
	apply func(context.Context, Store, T) (upsertOutcome, error),
) (models.EntityCounts, error) {
	var counts models.EntityCounts
	cursor := ""
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
		res, err := fetch(fetchCtx, connector.FetchOptions{
			UpdatedSince: updatedSince,
			Cursor:       cursor,
			PageSize:     e.opts.PageSize,
		})
		cancel()
		if err != nil {
			return counts, err
		}

		var page models.EntityCounts
		err = e.store.InPage(ctx, func(tx Store) error {
			for _, item := range res.Items {
				outcome, err := apply(ctx, tx, item)
				if err != nil {
					return err
				}
				switch outcome {
				case outcomeCreated:
					page.Created++
				case outcomeUpdated:
					page.Updated++
				case outcomeSkipped:
					page.Skipped++
				}
			}
			return nil
		})
		if err != nil {
			return counts, err
		}
		counts.Created += page.Created
		counts.Updated += page.Updated
		counts.Skipped += page.Skipped

		if !res.HasMore {
			return counts, nil
		}
		if strings.TrimSpace(res.NextCursor) == "" {
			return counts, connector.ErrMissingCursor
		}
		cursor = res.NextCursor
	}
}

// runEntityTypes resolves the run's requested entity types against the fixed
// dependency order; referenced records sync before the records that point at
// them. No stored selection means every type; a stored selection that yields
// no known type runs nothing rather than silently widening to a full sync.
func (e *Engine) runEntityTypes(run *models.SyncRun) []connector.EntityType {
	names := models.DecodeEntityTypes(run.EntityTypesJSON)
	if len(names) == 0 {
		return connector.EntityOrder
	}
	requested := map[connector.EntityType]bool{}
	for _, name := range names {
		if et, ok := connector.ParseEntityType(name); ok {
			requested[et] = true
		}
	}
	ordered := make([]connector.EntityType, 0, len(requested))
	for _, et := range connector.EntityOrder {
		if requested[et] {
			ordered = append(ordered, et)
		}
	}
	return ordered
}

func (e *Engine) acquireOrgLock(ctx context.Context, organizationId string) (func(), error) {
	if locker := e.lockerFn(); locker != nil {
		key := "booksync:run:" + organizationId
		lock, err := locker.Obtain(ctx, key, e.opts.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrSyncAlreadyRunning
		}
		if err != nil {
			return nil, err
		}
		return func() { _ = lock.Release(context.Background()) }, nil
	}

	// No Redis (local dev, unit tests): guard within this process only.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.localRuns[organizationId] {
		return nil, ErrSyncAlreadyRunning
	}
	e.localRuns[organizationId] = true
	return func() {
		e.mu.Lock()
		delete(e.localRuns, organizationId)
		e.mu.Unlock()
	}, nil
}

func runStatusFor(total, errored int) string {
	switch {
	case errored == 0:
		return models.SyncRunStatusCompleted
	case errored >= total:
		return models.SyncRunStatusFailed
	default:
		return models.SyncRunStatusPartial
	}
}

func errorSummary(details []models.SyncErrorDetail) string {
	if len(details) == 0 {
		return ""
	}
	parts := make([]string, 0, len(details))
	for _, d := range details {
		parts = append(parts, fmt.Sprintf("%s: %s", d.EntityType, d.Error))
	}
	return strings.Join(parts, "; ")
}

func syncTypeFor(entityTypes []connector.EntityType) string {
	if len(entityTypes) == 0 {
		return models.SyncTypeFull
	}
	distinct := map[connector.EntityType]bool{}
	for _, et := range entityTypes {
		distinct[et] = true
	}
	if len(distinct) >= len(connector.EntityOrder) {
		return models.SyncTypeFull
	}
	return models.SyncTypePartial
}

func entityTypeNames(types []connector.EntityType) []string {
	names := make([]string, 0, len(types))
	for _, et := range types {
		names = append(names, string(et))
	}
	return names
}
