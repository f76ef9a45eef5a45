// Package analytics computes read-only views over a user's transaction
// records: filtered subsequences, recency slices, per-category rollups and
// summary totals. Everything in aggregate.go is a pure function over the slice
// it is given; the input is never mutated and no I/O happens here.
package analytics

import (
	"sort"
	"strings"

	"github.com/finman-app/finman-server/cmd/models"
)

// Filter describes the active predicates. Zero-value fields are inactive.
type Filter struct {
	Kind     string // exact match on the record kind
	Category string // exact match on the category label
	Search   string // case-insensitive substring over description and category
}

// Apply returns the subsequence of records satisfying every active predicate,
// preserving the original order.
func Apply(records []models.Transaction, f Filter) []models.Transaction {
	search := strings.ToLower(f.Search)
	var filtered []models.Transaction
	for _, t := range records {
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Description), search) &&
			!strings.Contains(strings.ToLower(t.Category), search) {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// Recent returns the top n records by date descending. The sort is stable, so
// records sharing a date keep their input order.
func Recent(records []models.Transaction, n int) []models.Transaction {
	sorted := make([]models.Transaction, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if n < 0 {
		n = 0
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// CategoryTotals is the rollup for one category: income and expense sums and
// their net (income minus expense).
type CategoryTotals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Total   float64 `json:"total"`
}

// CategoryRollup groups records by category and sums amounts per kind.
func CategoryRollup(records []models.Transaction) map[string]CategoryTotals {
	rollup := make(map[string]CategoryTotals)
	for _, t := range records {
		totals := rollup[t.Category]
		switch t.Kind {
		case models.KindIncome:
			totals.Income += t.Amount
			totals.Total += t.Amount
		case models.KindExpense:
			totals.Expense += t.Amount
			totals.Total -= t.Amount
		}
		rollup[t.Category] = totals
	}
	return rollup
}

// Summary holds the overall totals for a record set.
type Summary struct {
	TotalIncome  float64 `json:"total_income"`
	TotalExpense float64 `json:"total_expense"`
	Balance      float64 `json:"balance"`
	Count        int     `json:"count"`
}

// Summarize computes overall income, expense, balance and record count.
func Summarize(records []models.Transaction) Summary {
	summary := Summary{Count: len(records)}
	for _, t := range records {
		switch t.Kind {
		case models.KindIncome:
			summary.TotalIncome += t.Amount
		case models.KindExpense:
			summary.TotalExpense += t.Amount
		}
	}
	summary.Balance = summary.TotalIncome - summary.TotalExpense
	return summary
}
