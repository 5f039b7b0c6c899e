package overview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	inventoryModel "tally/internal/inventory/models"
	ledgerModel "tally/internal/ledger/models"

	dErrors "tally/pkg/domain-errors"
)

// Snapshot is the combined dashboard view of one owner's ledger and
// inventory.
type Snapshot struct {
	Ledger      ledgerModel.Summary    `json:"ledger"`
	Inventory   inventoryModel.Summary `json:"inventory"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// LedgerSummarizer exposes the ledger's aggregate counters.
type LedgerSummarizer interface {
	Summary(ctx context.Context, ownerID string) (ledgerModel.Summary, error)
}

// InventorySummarizer exposes the inventory's aggregate counters.
type InventorySummarizer interface {
	Summary(ctx context.Context, ownerID string) (inventoryModel.Summary, error)
}

// Cache holds recent snapshots. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Service assembles the dashboard snapshot, fanning both summaries out in
// parallel and serving a cached copy when one is fresh enough.
type Service struct {
	ledger    LedgerSummarizer
	inventory InventorySummarizer
	cache     Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

func New(ledger LedgerSummarizer, inventory InventorySummarizer, opts ...Option) *Service {
	s := &Service{ledger: ledger, inventory: inventory, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(ownerID string) string {
	return "overview:" + ownerID
}

// Snapshot returns the dashboard for one owner. Cache misses and cache
// failures both fall through to a fresh computation; the cache is an
// optimization, never a source of truth.
func (s *Service) Snapshot(ctx context.Context, ownerID string) (*Snapshot, error) {
	if cached := s.fromCache(ctx, ownerID); cached != nil {
		return cached, nil
	}

	var snapshot Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.ledger.Summary(gctx, ownerID)
		if err != nil {
			return err
		}
		snapshot.Ledger = summary
		return nil
	})
	g.Go(func() error {
		summary, err := s.inventory.Summary(gctx, ownerID)
		if err != nil {
			return err
		}
		snapshot.Inventory = summary
		return nil
	})
	if err := g.Wait(); err != nil {
		var coded *dErrors.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assemble overview")
	}
	snapshot.GeneratedAt = time.Now().UTC()

	s.toCache(ctx, ownerID, &snapshot)
	return &snapshot, nil
}

func (s *Service) fromCache(ctx context.Context, ownerID string) *Snapshot {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKey(ownerID))
	if err != nil || raw == "" {
		return nil
	}
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		s.logger.WarnContext(ctx, "discarding malformed cached overview", "owner_id", ownerID, "error", err)
		return nil
	}
	return &snapshot
}

func (s *Service) toCache(ctx context.Context, ownerID string, snapshot *Snapshot) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(ownerID), string(payload), s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache overview", "owner_id", ownerID, "error", err)
	}
}
