package expense

import (
	"errors"

	"github.com/google/uuid"
)

var errEmptySnapshot = errors.New("participant snapshot cannot be empty")

// Summary aggregates paid expenses of an event
type Summary struct {
	Total      int64               `json:"total"`
	Count      int                 `json:"count"`
	ByCategory map[string]int64    `json:"by_category"`
	ByPayer    map[uuid.UUID]int64 `json:"by_payer"`
}

// UncategorizedKey groups expenses without a category
const UncategorizedKey = "uncategorized"

// Summarize totals the paid expenses in list
func Summarize(list []*Expense) Summary {
	s := Summary{
		ByCategory: map[string]int64{},
		ByPayer:    map[uuid.UUID]int64{},
	}
	for _, e := range list {
		if e.Status != StatusPaid {
			continue
		}
		s.Total += e.Amount
		s.Count++
		key := UncategorizedKey
		if e.CategoryID != nil {
			key = e.CategoryID.String()
		}
		s.ByCategory[key] += e.Amount
		s.ByPayer[e.PaidBy] += e.Amount
	}
	return s
}
