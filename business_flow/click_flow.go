package businessflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
	"github.com/treebio/treebio/utils"
)

// ClickPath names the branch that handled a click
type ClickPath string

const (
	// ClickPathPrimary: event inserted and counter incremented in one transaction
	ClickPathPrimary ClickPath = "primary"
	// ClickPathFallback: transaction failed, counter incremented without an event
	ClickPathFallback ClickPath = "fallback"
	// ClickPathSkipped: link does not exist, nothing written
	ClickPathSkipped ClickPath = "skipped"
	// ClickPathFailed: both paths failed
	ClickPathFailed ClickPath = "failed"
)

// ClickResult is the outcome of LogLinkClick. Click is set only on the primary path.
type ClickResult struct {
	Click *models.LinkClick
	Link  *models.Link
	Path  ClickPath
}

// ClickFlow records link click-throughs and keeps the link counter in step with click events
type ClickFlow interface {
	LogLinkClick(ctx context.Context, linkID uint, clickerIP *string) (*ClickResult, error)
	// ResolveLink loads a link without recording anything. Missing links return nil, nil.
	ResolveLink(ctx context.Context, linkID uint) (*models.Link, error)
}

type ClickFlowImpl struct {
	linkRepo   repository.LinkRepository
	clickRepo  repository.LinkClickRepository
	transactor repository.Transactor
	cache      SummaryInvalidator
	now        Clock
	logger     zerolog.Logger
}

type ClickFlowOption func(*ClickFlowImpl)

func WithClickClock(c Clock) ClickFlowOption {
	return func(f *ClickFlowImpl) { f.now = defaultClock(c) }
}

// WithClickSummaryInvalidator drops the owner's cached summary after every counted click
func WithClickSummaryInvalidator(inv SummaryInvalidator) ClickFlowOption {
	return func(f *ClickFlowImpl) { f.cache = inv }
}

func NewClickFlow(
	linkRepo repository.LinkRepository,
	clickRepo repository.LinkClickRepository,
	transactor repository.Transactor,
	logger zerolog.Logger,
	opts ...ClickFlowOption,
) ClickFlow {
	f := &ClickFlowImpl{
		linkRepo:   linkRepo,
		clickRepo:  clickRepo,
		transactor: transactor,
		now:        utils.UTCNow,
		logger:     logger.With().Str("flow", "click").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ClickFlowImpl) LogLinkClick(ctx context.Context, linkID uint, clickerIP *string) (*ClickResult, error) {
	link, err := f.linkRepo.ByID(ctx, linkID)
	if err != nil {
		return f.fallback(ctx, linkID, nil, fmt.Errorf("lookup link: %w", err))
	}
	if link == nil {
		linkClicksTotal.WithLabelValues(string(ClickPathSkipped)).Inc()
		f.logger.Warn().Uint("link_id", linkID).Msg("click on missing link ignored")
		return &ClickResult{Path: ClickPathSkipped}, nil
	}

	key := utils.ClientIPFromContext(ctx, clickerIP)

	click, err := f.primary(ctx, link.ID, key)
	if err != nil {
		return f.fallback(ctx, link.ID, link, err)
	}

	linkClicksTotal.WithLabelValues(string(ClickPathPrimary)).Inc()
	link.ClickCount++
	f.invalidate(ctx, link.UserID)
	return &ClickResult{Click: click, Link: link, Path: ClickPathPrimary}, nil
}

func (f *ClickFlowImpl) ResolveLink(ctx context.Context, linkID uint) (*models.Link, error) {
	link, err := f.linkRepo.ByID(ctx, linkID)
	if err != nil {
		return nil, NewBusinessErrorf("LINK_LOOKUP_FAILED", "Failed to load link %d", err, linkID)
	}
	return link, nil
}

// primary inserts the event and increments the counter atomically
func (f *ClickFlowImpl) primary(ctx context.Context, linkID uint, key string) (*models.LinkClick, error) {
	click := &models.LinkClick{
		LinkID:    linkID,
		ClickerIP: key,
		ClickedAt: f.now().UTC(),
	}
	err := f.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := f.clickRepo.Save(txCtx, click); err != nil {
			return err
		}
		return f.linkRepo.IncrementClickCount(txCtx, linkID)
	})
	if err != nil {
		return nil, err
	}
	return click, nil
}

// fallback advances the counter alone so the visible count still moves.
// The counter then exceeds the event count for this link until reconciled.
func (f *ClickFlowImpl) fallback(ctx context.Context, linkID uint, link *models.Link, cause error) (*ClickResult, error) {
	if err := f.linkRepo.IncrementClickCount(ctx, linkID); err != nil {
		linkClicksTotal.WithLabelValues(string(ClickPathFailed)).Inc()
		f.logger.Error().Err(err).AnErr("cause", cause).Uint("link_id", linkID).Msg("click fallback increment failed")
		return &ClickResult{Link: link, Path: ClickPathFailed},
			NewBusinessErrorf("CLICK_FALLBACK_FAILED", "Failed to record click on link %d", err, linkID)
	}

	linkClicksTotal.WithLabelValues(string(ClickPathFallback)).Inc()
	f.logger.Warn().
		Err(cause).
		Uint("link_id", linkID).
		Msg("click recorded on counter only; counter now ahead of click events")

	if link != nil {
		link.ClickCount++
		f.invalidate(ctx, link.UserID)
	}
	return &ClickResult{Link: link, Path: ClickPathFallback}, nil
}

func (f *ClickFlowImpl) invalidate(ctx context.Context, userID uint) {
	if f.cache == nil {
		return
	}
	f.cache.InvalidateSummary(ctx, userID)
}
