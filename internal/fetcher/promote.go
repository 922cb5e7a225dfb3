package fetcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/review"
)

// Detector decides whether a plainly fetched page needs a browser.
type Detector interface {
	ShouldPromote(page review.RawPage) bool
}

// Promoting fetches with the primary source and re-renders the page with the
// headless source when the detector asks for it.
type Promoting struct {
	primary  review.PageSource
	headless review.PageSource
	detector Detector
	logger   *zap.Logger
}

// NewPromoting wires a promoting source. A nil headless source or detector
// disables promotion.
func NewPromoting(primary, headless review.PageSource, detector Detector, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{primary: primary, headless: headless, detector: detector, logger: logger}
}

// Fetch implements review.PageSource. A failed headless render falls back to
// the plain page.
func (p *Promoting) Fetch(ctx context.Context, request review.PageRequest) (review.RawPage, error) {
	page, err := p.primary.Fetch(ctx, request)
	if err != nil {
		return review.RawPage{}, fmt.Errorf("fetch page %d: %w", request.Page, err)
	}
	if p.headless == nil || p.detector == nil || !p.detector.ShouldPromote(page) {
		return page, nil
	}
	rendered, err := p.headless.Fetch(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return review.RawPage{}, fmt.Errorf("headless fetch page %d: %w", request.Page, ctx.Err())
		}
		p.logger.Warn("headless promotion failed, using plain page",
			zap.Int("page", request.Page),
			zap.Error(err),
		)
		return page, nil
	}
	p.logger.Debug("page promoted to headless", zap.Int("page", request.Page))
	return rendered, nil
}
