package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

const (
	TopProductLimit = 5
	SeriesDays      = 14
)

type PaymentBucket struct {
	Orders       int   `json:"orders"`
	RevenueCents int64 `json:"revenue_cents"`
}

type ProductStat struct {
	ProductID    string `json:"product_id,omitempty"`
	Name         string `json:"name"`
	QuantitySold int    `json:"quantity_sold"`
	RevenueCents int64  `json:"revenue_cents"`
	ImageRef     string `json:"image_ref,omitempty"`
}

type DayPoint struct {
	Date         string `json:"date"`
	OrderCount   int    `json:"order_count"`
	RevenueCents int64  `json:"revenue_cents"`
}

// Summary is everything derived from the orders of a single window.
type Summary struct {
	RevenueCents     int64                                  `json:"revenue_cents"`
	TotalOrders      int                                    `json:"total_orders"`
	PendingOrders    int                                    `json:"pending_orders"`
	CancelledOrders  int                                    `json:"cancelled_orders"`
	StatusBreakdown  map[orders.Status]int                  `json:"status_breakdown"`
	PaymentBreakdown map[orders.PaymentMethod]PaymentBucket `json:"payment_breakdown"`
	TopProducts      []ProductStat                          `json:"top_products"`
}

type Report struct {
	Period               Period               `json:"period"`
	From                 *time.Time           `json:"from,omitempty"`
	To                   time.Time            `json:"to"`
	Summary
	PreviousRevenueCents int64                `json:"previous_revenue_cents"`
	RevenueChangePct     float64              `json:"revenue_change_pct"`
	DailySeries          []DayPoint           `json:"daily_series"`
	Markets              []orders.MarketTotal `json:"markets"`
}

// Summarize reduces one window's orders. Revenue, payment revenue and top products only count
// completed orders; counts cover every order.
func Summarize(list []orders.Order) Summary {
	s := Summary{
		StatusBreakdown: make(map[orders.Status]int, len(orders.AllStatuses)),
		PaymentBreakdown: map[orders.PaymentMethod]PaymentBucket{
			orders.PaymentQR:  {},
			orders.PaymentCOD: {},
		},
	}
	for _, st := range orders.AllStatuses {
		s.StatusBreakdown[st] = 0
	}

	products := map[string]*ProductStat{}
	for _, o := range list {
		s.TotalOrders++
		s.StatusBreakdown[o.Status]++
		switch o.Status {
		case orders.StatusPending:
			s.PendingOrders++
		case orders.StatusCancelled:
			s.CancelledOrders++
		}

		pb := s.PaymentBreakdown[o.PaymentMethod]
		pb.Orders++
		if o.Status == orders.StatusCompleted {
			pb.RevenueCents += o.TotalCents
		}
		s.PaymentBreakdown[o.PaymentMethod] = pb

		if o.Status != orders.StatusCompleted {
			continue
		}
		s.RevenueCents += o.TotalCents
		for _, it := range o.Items {
			key := it.ProductID
			if key == "" {
				key = "name:" + it.Name
			}
			ps, ok := products[key]
			if !ok {
				ps = &ProductStat{ProductID: it.ProductID, Name: it.Name, ImageRef: it.ImageRef}
				products[key] = ps
			}
			ps.QuantitySold += it.Quantity
			ps.RevenueCents += it.Subtotal()
		}
	}

	s.TopProducts = make([]ProductStat, 0, len(products))
	for _, ps := range products {
		s.TopProducts = append(s.TopProducts, *ps)
	}
	sort.Slice(s.TopProducts, func(i, j int) bool {
		a, b := s.TopProducts[i], s.TopProducts[j]
		if a.RevenueCents != b.RevenueCents {
			return a.RevenueCents > b.RevenueCents
		}
		if a.QuantitySold != b.QuantitySold {
			return a.QuantitySold > b.QuantitySold
		}
		return a.Name < b.Name
	})
	if len(s.TopProducts) > TopProductLimit {
		s.TopProducts = s.TopProducts[:TopProductLimit]
	}
	return s
}

// CompletedRevenue sums the totals of completed orders.
func CompletedRevenue(list []orders.Order) int64 {
	var total int64
	for _, o := range list {
		if o.Status == orders.StatusCompleted {
			total += o.TotalCents
		}
	}
	return total
}

// SeriesStart is the first instant covered by the trailing daily series as of now.
func SeriesStart(now time.Time, loc *time.Location) time.Time {
	return startOfDay(now.In(loc)).AddDate(0, 0, -(SeriesDays - 1))
}

// DailySeries buckets completed orders into the SeriesDays calendar days ending today,
// oldest first, zero-filled.
func DailySeries(list []orders.Order, now time.Time, loc *time.Location) []DayPoint {
	start := SeriesStart(now, loc)
	points := make([]DayPoint, SeriesDays)
	index := make(map[string]int, SeriesDays)
	for i := range points {
		d := start.AddDate(0, 0, i).Format(dateLayout)
		points[i].Date = d
		index[d] = i
	}
	for _, o := range list {
		if o.Status != orders.StatusCompleted {
			continue
		}
		i, ok := index[o.CreatedAt.In(loc).Format(dateLayout)]
		if !ok {
			continue
		}
		points[i].OrderCount++
		points[i].RevenueCents += o.TotalCents
	}
	return points
}

// ChangePct is the percentage change from previous to current, rounded to two decimals.
// Without a previous baseline the change is 0.
func ChangePct(current, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	prev := decimal.NewFromInt(previous)
	return decimal.NewFromInt(current).Sub(prev).
		Div(prev).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// MergeMarkets returns the known markets first, zero-filled, then any other market present in
// totals.
func MergeMarkets(known []string, totals []orders.MarketTotal) []orders.MarketTotal {
	byName := make(map[string]orders.MarketTotal, len(totals))
	for _, t := range totals {
		byName[t.Market] = t
	}
	out := make([]orders.MarketTotal, 0, len(known)+len(totals))
	seen := make(map[string]bool, len(known))
	for _, name := range known {
		t := byName[name]
		t.Market = name
		out = append(out, t)
		seen[name] = true
	}
	for _, t := range totals {
		if !seen[t.Market] {
			out = append(out, t)
		}
	}
	return out
}
