package businessflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
	"github.com/treebio/treebio/utils"
)

// VisitFlow records profile visits, collapsing repeats from the same
// visitor within the de-duplication window.
// Returns nil, nil when the visit was a duplicate.
type VisitFlow interface {
	LogProfileVisit(ctx context.Context, userID uint, visitorIP *string) (*models.ProfileVisit, error)
}

type VisitFlowImpl struct {
	visitRepo repository.ProfileVisitRepository
	window    time.Duration
	now       Clock
	logger    zerolog.Logger
}

type VisitFlowOption func(*VisitFlowImpl)

func WithVisitClock(c Clock) VisitFlowOption {
	return func(f *VisitFlowImpl) { f.now = defaultClock(c) }
}

func NewVisitFlow(visitRepo repository.ProfileVisitRepository, window time.Duration, logger zerolog.Logger, opts ...VisitFlowOption) VisitFlow {
	if window <= 0 {
		window = utils.DefaultDedupWindow
	}
	f := &VisitFlowImpl{
		visitRepo: visitRepo,
		window:    window,
		now:       utils.UTCNow,
		logger:    logger.With().Str("flow", "visit").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *VisitFlowImpl) LogProfileVisit(ctx context.Context, userID uint, visitorIP *string) (*models.ProfileVisit, error) {
	key := utils.ClientIPFromContext(ctx, visitorIP)
	now := f.now().UTC()
	since := now.Add(-f.window)

	// Read-then-write: concurrent duplicates inside the same instant may both insert.
	seen, err := f.visitRepo.Exists(ctx, models.ProfileVisitFilter{
		UserID:       &userID,
		VisitorIP:    &key,
		VisitedAfter: &since,
	})
	if err != nil {
		profileVisitsTotal.WithLabelValues(visitResultFailed).Inc()
		return nil, NewBusinessError("VISIT_LOOKUP_FAILED", "Failed to look up recent profile visits", err)
	}
	if seen {
		profileVisitsTotal.WithLabelValues(visitResultDeduplicated).Inc()
		f.logger.Debug().Uint("user_id", userID).Str("visitor_ip", key).Msg("profile visit deduplicated")
		return nil, nil
	}

	visit := &models.ProfileVisit{
		UserID:    userID,
		VisitorIP: key,
		VisitedAt: now,
	}
	if err := f.visitRepo.Save(ctx, visit); err != nil {
		profileVisitsTotal.WithLabelValues(visitResultFailed).Inc()
		return nil, NewBusinessError("VISIT_SAVE_FAILED", "Failed to record profile visit", err)
	}

	profileVisitsTotal.WithLabelValues(visitResultLogged).Inc()
	return visit, nil
}
