package poimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsdesk/partsdesk/internal/platform/lock"
)

// LockKey guards the import tables against concurrent batches.
const LockKey = "poimport:lock"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	ListVendors(ctx context.Context) ([]Vendor, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Locker hands out a batch-wide mutual exclusion lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lease, error)
}

// ServiceConfig carries the import defaults. A nil DefaultTaxPercent falls
// back to the package DefaultTaxPercent; an explicit zero is kept.
type ServiceConfig struct {
	DefaultTaxPercent *decimal.Decimal
	LockTTL           time.Duration
}

// Options tune a single batch.
type Options struct {
	TaxPercent      *decimal.Decimal `json:"tax_percent,omitempty"`
	ShippingCharges decimal.Decimal  `json:"shipping_charges"`
	DryRun          bool             `json:"dry_run"`
}

// Service runs import batches.
type Service struct {
	repo    RepositoryPort
	locker  Locker
	metrics *Metrics
	logger  *slog.Logger
	cfg     ServiceConfig
	now     func() time.Time
	newID   func() string
}

// NewService constructs the import service. locker and metrics may be nil.
func NewService(repo RepositoryPort, locker Locker, metrics *Metrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTaxPercent == nil {
		tax := DefaultTaxPercent
		cfg.DefaultTaxPercent = &tax
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

var errDryRunRollback = errors.New("poimport: dry run rollback")

// Import reconciles a batch of raw rows and returns the per-group report.
// Group failures are recorded in the report; only batch-level problems are
// returned as errors. Cancelling ctx stops new groups from starting but lets
// the current group commit or roll back on its own.
func (s *Service) Import(ctx context.Context, raw []RawRow, opts Options) (Report, error) {
	if len(raw) == 0 {
		return Report{}, ErrEmptyBatch
	}
	start := s.now()
	defer s.metrics.observeBatch(start)

	groups, discarded := GroupRows(raw)

	var lease lock.Lease
	if s.locker != nil {
		var err error
		lease, err = s.locker.Acquire(ctx, LockKey, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return Report{}, ErrImportRunning
			}
			return Report{}, fmt.Errorf("poimport: acquire lock: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release import lock", slog.Any("error", err))
			}
		}()
	}

	vendors, err := s.repo.ListVendors(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("poimport: load vendors: %w", err)
	}

	taxPercent := *s.cfg.DefaultTaxPercent
	if opts.TaxPercent != nil {
		taxPercent = *opts.TaxPercent
	}
	resolver := NewVendorResolver(NewVendorIndex(vendors), s.now)
	reconciler := NewGroupReconciler(resolver, NewPartResolver(s.now), taxPercent, opts.ShippingCharges, s.now)

	batchID := s.newID()
	builder := NewReportBuilder(batchID, start, opts.DryRun)
	builder.Rows(len(raw), discarded, len(groups))
	logger := s.logger.With(slog.String("batch_id", batchID))
	logger.Info("import started",
		slog.Int("rows", len(raw)),
		slog.Int("groups", len(groups)),
		slog.Int("vendors", len(vendors)),
		slog.Bool("dry_run", opts.DryRun))

	var lockErr error
	refreshedAt := start
	for i, g := range groups {
		if ctx.Err() != nil {
			builder.Cancel(len(groups) - i)
			logger.Warn("import cancelled", slog.Int("unprocessed", len(groups)-i), slog.Any("error", ctx.Err()))
			break
		}
		if lease != nil && s.now().Sub(refreshedAt) >= s.cfg.LockTTL/2 {
			if err := lease.Refresh(context.WithoutCancel(ctx)); err != nil {
				builder.Cancel(len(groups) - i)
				logger.Error("import lock lost", slog.Int("unprocessed", len(groups)-i), slog.Any("error", err))
				lockErr = fmt.Errorf("%w: %v", ErrLockLost, err)
				break
			}
			refreshedAt = s.now()
		}
		outcome, err := s.runGroup(context.WithoutCancel(ctx), reconciler, g, opts.DryRun)
		if err != nil {
			builder.Fail(g.OrderNumber, err)
			s.metrics.observeFailure()
			logger.Warn("import group failed", slog.String("order_number", g.OrderNumber), slog.Any("error", err))
			continue
		}
		if outcome.CreatedVendor != nil && !opts.DryRun {
			resolver.Remember(*outcome.CreatedVendor)
		}
		builder.Apply(outcome)
		s.metrics.observeOutcome(outcome)
		logger.Debug("import group done",
			slog.String("order_number", g.OrderNumber),
			slog.String("action", string(outcome.Action)),
			slog.String("reason", outcome.Reason),
			slog.Int("items", len(outcome.Items)))
	}

	report := builder.Build(s.now())
	logger.Info("import finished",
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Summary.Failed),
		slog.Int("vendors_created", report.Summary.VendorsCreated),
		slog.Int("parts_created", report.Summary.PartsCreated))
	return report, lockErr
}

func (s *Service) runGroup(ctx context.Context, reconciler *GroupReconciler, g Group, dryRun bool) (GroupOutcome, error) {
	var outcome GroupOutcome
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		outcome, err = reconciler.Reconcile(ctx, tx, g)
		if err != nil {
			return err
		}
		if dryRun {
			return errDryRunRollback
		}
		return nil
	})
	if errors.Is(err, errDryRunRollback) {
		err = nil
	}
	return outcome, err
}

// GroupRows normalizes raw rows and groups them by order number in order of
// first appearance. Rows without an order number are dropped and counted.
func GroupRows(raw []RawRow) ([]Group, int) {
	var groups []Group
	index := make(map[string]int)
	discarded := 0
	for _, r := range raw {
		row := NormalizeRow(r)
		if row.OrderNumber == "" {
			discarded++
			continue
		}
		i, ok := index[row.OrderNumber]
		if !ok {
			i = len(groups)
			index[row.OrderNumber] = i
			groups = append(groups, Group{OrderNumber: row.OrderNumber})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups, discarded
}
