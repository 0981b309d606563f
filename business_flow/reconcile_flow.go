package businessflow

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
	"github.com/treebio/treebio/utils"
)

const defaultReconcileBatchSize = 500

// ReconcileFlow compares every link's click counter with its stored click events.
// Counters below the event count can be raised in repair mode; counters above it
// come from fallback increments and are only reported, since counters never decrease.
type ReconcileFlow interface {
	Run(ctx context.Context) (*dto.ReconcileReport, error)
}

type ReconcileFlowImpl struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.LinkClickRepository
	batchSize int
	repair    bool
	now       Clock
	logger    zerolog.Logger
}

type ReconcileFlowOption func(*ReconcileFlowImpl)

func WithReconcileRepair(repair bool) ReconcileFlowOption {
	return func(f *ReconcileFlowImpl) { f.repair = repair }
}

func WithReconcileBatchSize(n int) ReconcileFlowOption {
	return func(f *ReconcileFlowImpl) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

func WithReconcileClock(c Clock) ReconcileFlowOption {
	return func(f *ReconcileFlowImpl) { f.now = defaultClock(c) }
}

func NewReconcileFlow(
	linkRepo repository.LinkRepository,
	clickRepo repository.LinkClickRepository,
	logger zerolog.Logger,
	opts ...ReconcileFlowOption,
) ReconcileFlow {
	f := &ReconcileFlowImpl{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		batchSize: defaultReconcileBatchSize,
		now:       utils.UTCNow,
		logger:    logger.With().Str("flow", "reconcile").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ReconcileFlowImpl) Run(ctx context.Context) (*dto.ReconcileReport, error) {
	report := &dto.ReconcileReport{
		StartedAt: f.now().UTC(),
		Divergent: []dto.ReconcileDivergence{},
	}

	for offset := 0; ; offset += f.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		links, err := f.linkRepo.ByFilter(ctx, models.LinkFilter{}, "id ASC", f.batchSize, offset)
		if err != nil {
			return report, NewBusinessError("RECONCILE_SCAN_FAILED", "Failed to scan links", err)
		}
		if len(links) == 0 {
			break
		}

		ids := make([]uint, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.ID)
		}
		events, err := f.clickRepo.CountByLinks(ctx, ids)
		if err != nil {
			return report, NewBusinessError("RECONCILE_COUNT_FAILED", "Failed to count click events", err)
		}

		for _, l := range links {
			report.LinksScanned++
			eventCount := events[l.ID]
			if eventCount == l.ClickCount {
				continue
			}

			d := dto.ReconcileDivergence{LinkID: l.ID, ClickCount: l.ClickCount, EventCount: eventCount}
			if f.repair && l.ClickCount < eventCount {
				raised, err := f.linkRepo.RaiseClickCount(ctx, l.ID, eventCount)
				switch {
				case err != nil:
					f.logger.Error().Err(err).Uint("link_id", l.ID).Msg("failed to repair click counter")
				case raised:
					d.Repaired = true
					report.Repaired++
				default:
					// concurrent clicks already moved the counter past the scanned event count
					f.logger.Debug().Uint("link_id", l.ID).Msg("click counter caught up before repair")
				}
			}
			f.logger.Warn().
				Uint("link_id", l.ID).
				Int64("click_count", l.ClickCount).
				Int64("event_count", eventCount).
				Bool("repaired", d.Repaired).
				Msg("click counter diverges from click events")
			report.Divergent = append(report.Divergent, d)
		}

		if len(links) < f.batchSize {
			break
		}
	}

	report.FinishedAt = f.now().UTC()
	divergentLinks.Set(float64(len(report.Divergent) - report.Repaired))
	f.logger.Info().
		Int("links_scanned", report.LinksScanned).
		Int("divergent", len(report.Divergent)).
		Int("repaired", report.Repaired).
		Msg("click counter reconciliation finished")
	return report, nil
}
