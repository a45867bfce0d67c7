package analytics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-marketplace-orders/internal/analytics")

// Source is the read side the aggregator runs on. It never writes.
type Source interface {
	SellerOrdersBetween(ctx context.Context, sellerID string, from, to time.Time) ([]orders.Order, error)
	MarketRevenue(ctx context.Context, from, to time.Time) ([]orders.MarketTotal, error)
}

type Service struct {
	Source  Source
	Markets []string // always present in the market comparison
	Loc     *time.Location
	Now     func() time.Time
}

func (s *Service) loc() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return time.UTC
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SellerReport builds the analytics report of one seller. The four reads are independent and
// run concurrently.
func (s *Service) SellerReport(ctx context.Context, sellerID string, q Query) (Report, error) {
	ctx, span := tracer.Start(ctx, "analytics.SellerReport", trace.WithAttributes(attribute.String("seller.id", sellerID)))
	defer span.End()

	now := s.now()
	period, win, err := Resolve(q, now, s.loc())
	if err != nil {
		return Report{}, err
	}

	var (
		current, previous, recent []orders.Order
		markets                   []orders.MarketTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.Source.SellerOrdersBetween(gctx, sellerID, win.From, win.To)
		return err
	})
	prevWin, hasPrev := win.Previous()
	if hasPrev {
		g.Go(func() error {
			var err error
			previous, err = s.Source.SellerOrdersBetween(gctx, sellerID, prevWin.From, prevWin.To)
			return err
		})
	}
	g.Go(func() error {
		var err error
		recent, err = s.Source.SellerOrdersBetween(gctx, sellerID, SeriesStart(now, s.loc()), now)
		return err
	})
	g.Go(func() error {
		var err error
		markets, err = s.Source.MarketRevenue(gctx, win.From, win.To)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Report{}, err
	}

	r := Report{
		Period:      period,
		To:          win.To,
		Summary:     Summarize(current),
		DailySeries: DailySeries(recent, now, s.loc()),
		Markets:     MergeMarkets(s.Markets, markets),
	}
	if win.Bounded() {
		from := win.From
		r.From = &from
	}
	if hasPrev {
		r.PreviousRevenueCents = CompletedRevenue(previous)
		r.RevenueChangePct = ChangePct(r.RevenueCents, r.PreviousRevenueCents)
	}
	return r, nil
}
