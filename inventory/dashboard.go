package inventory

import (
	"context"
	"time"

	"github.com/warp/sim-inventory/access"
)

const (
	DefaultOverviewDays = 30
	MaxOverviewDays     = 366
)

// DayMovement is the number of movements recorded on one UTC day.
type DayMovement struct {
	Date     string
	StockIn  int
	StockOut int
}

// Overview is the dashboard payload.
type Overview struct {
	Total              int
	InStock            int
	OutStock           int
	TransactionHistory []DayMovement
	ByType             []TypeCount
	ByCustomer         []CustomerCount
}

// Overview returns per-day movements for the trailing window of days
// (today included, zero-filled), cards per type, and cards currently held
// per customer.
func (s *Service) Overview(ctx context.Context, days int) (Overview, error) {
	if err := access.Require(ctx, access.OpOverview); err != nil {
		return Overview{}, err
	}
	if days <= 0 {
		days = DefaultOverviewDays
	}
	if days > MaxOverviewDays {
		days = MaxOverviewDays
	}

	now := s.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))

	counts, err := s.store.DailyCounts(ctx, from)
	if err != nil {
		return Overview{}, err
	}
	history := make([]DayMovement, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := from.AddDate(0, 0, i).Format("2006-01-02")
		history[i] = DayMovement{Date: key}
		index[key] = i
	}
	for _, c := range counts {
		i, ok := index[c.Day]
		if !ok {
			continue // backdated or future rows outside the window
		}
		if c.Type == TxStockIn {
			history[i].StockIn += c.Count
		} else {
			history[i].StockOut += c.Count
		}
	}

	sum, err := computeSummary(ctx, s.store)
	if err != nil {
		return Overview{}, err
	}
	holders, err := s.store.HoldingsByCustomer(ctx)
	if err != nil {
		return Overview{}, err
	}
	if holders == nil {
		holders = []CustomerCount{}
	}

	return Overview{
		Total:              sum.Total,
		InStock:            sum.InStock,
		OutStock:           sum.OutStock,
		TransactionHistory: history,
		ByType:             sum.ByType,
		ByCustomer:         holders,
	}, nil
}
