package core

import (
	"strings"
	"time"
)

// Stats aggregates all transactions matching a filter.
// Balance is always TotalIncome - TotalExpense.
type Stats struct {
	TotalIncome       Money
	TotalExpense      Money
	TotalTransactions int64
	Balance           Money
}

// NewStats fills Balance from the two totals.
func NewStats(income, expense, count int64) Stats {
	return Stats{
		TotalIncome:       Money{Cents: income},
		TotalExpense:      Money{Cents: expense},
		TotalTransactions: count,
		Balance:           Money{Cents: income - expense},
	}
}

// CategoryTotal is the amount and row count recorded against one category.
type CategoryTotal struct {
	CategoryID int64
	Name       string
	Type       TransactionType
	Icon       string
	Color      string
	Total      Money
	Count      int64
}

// DateRange is inclusive on both ends.
type DateRange struct {
	Start Date
	End   Date
}

// Filter narrows transaction listings and statistics. Zero values match all.
type Filter struct {
	Type  TransactionType
	Range *DateRange
	Limit int
}

const (
	RangeAll     = "all"
	RangeWeek    = "week"
	RangeMonth   = "month"
	RangeQuarter = "3months"
	RangeYear    = "year"
)

// RangePreset maps a named preset to a range ending today. "all", empty and
// unknown names return nil (no restriction).
func RangePreset(name string, now time.Time) *DateRange {
	now = now.UTC()
	end := NewDate(now.Year(), int(now.Month()), now.Day())
	var start time.Time
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RangeWeek:
		start = end.AddDate(0, 0, -7)
	case RangeMonth:
		start = end.AddDate(0, -1, 0)
	case RangeQuarter:
		start = end.AddDate(0, -3, 0)
	case RangeYear:
		start = end.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &DateRange{Start: Date{Time: start}, End: end}
}

// ParseFilterType accepts "", "all", "income", "expense" (any case).
func ParseFilterType(s string) (TransactionType, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, RangeAll) {
		return "", nil
	}
	return ParseTransactionType(s)
}
