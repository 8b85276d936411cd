package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/acadhub/backend/core"
)

// Report windows supported by the time series view.
const (
	Last7Days  = "last_7_days"
	Last30Days = "last_30_days"
	ThisWeek   = "this_week"
	ThisMonth  = "this_month"
)

type (
	Totals struct {
		Income   decimal.Decimal `json:"income"`
		Expenses decimal.Decimal `json:"expenses"`
		Net      decimal.Decimal `json:"net"`
	}

	SeriesPoint struct {
		Date    string          `json:"date"` // YYYY-MM-DD
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
	}
)

// ComputeTotals derives income/expense/net figures from a ledger
// snapshot. Pure; recomputed synchronously from whatever snapshot the
// caller holds.
func ComputeTotals(txns []Transaction) Totals {
	var income, expenses decimal.Decimal
	for _, txn := range txns {
		switch txn.Type {
		case TypeIncome:
			income = income.Add(txn.Amount)
		case TypeExpense:
			expenses = expenses.Add(txn.Amount)
		}
	}
	return Totals{Income: income, Expenses: expenses, Net: income.Sub(expenses)}
}

// TimeSeries buckets same-day transactions by type over the requested
// window ending (or, for calendar windows, anchored) at now. The series
// always spans every calendar day of the window in chronological order;
// days without transactions yield explicit zero points so chart axes
// stay aligned.
func TimeSeries(txns []Transaction, window string, now time.Time) []SeriesPoint {
	start, end := windowBounds(window, now)

	perDay := make(map[string]*SeriesPoint)
	for _, txn := range txns {
		day := txn.Date.String()
		pt, ok := perDay[day]
		if !ok {
			pt = &SeriesPoint{Date: day}
			perDay[day] = pt
		}
		switch txn.Type {
		case TypeIncome:
			pt.Income = pt.Income.Add(txn.Amount)
		case TypeExpense:
			pt.Expense = pt.Expense.Add(txn.Amount)
		}
	}

	var series []SeriesPoint
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := core.FormatDate(day)
		if pt, ok := perDay[key]; ok {
			series = append(series, *pt)
			continue
		}
		series = append(series, SeriesPoint{Date: key, Income: decimal.Zero, Expense: decimal.Zero})
	}
	return series
}

func windowBounds(window string, now time.Time) (start, end time.Time) {
	today := truncateToDay(now)
	switch window {
	case Last7Days:
		return today.AddDate(0, 0, -6), today
	case ThisWeek:
		start = StartOfWeek(now)
		return start, start.AddDate(0, 0, 6)
	case ThisMonth:
		return StartOfMonth(now), today
	case Last30Days:
		fallthrough
	default:
		return today.AddDate(0, 0, -29), today
	}
}

// CountOnOrAfter counts dates falling on or after start. Used for the
// "new this month" dashboard figures over any entity's date field.
func CountOnOrAfter(dates []time.Time, start time.Time) int {
	var n int
	start = truncateToDay(start)
	for _, d := range dates {
		if !truncateToDay(d).Before(start) {
			n++
		}
	}
	return n
}

// StartOfMonth returns midnight on the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight on the Sunday on or before t.
func StartOfWeek(t time.Time) time.Time {
	return truncateToDay(t).AddDate(0, 0, -int(t.Weekday()))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
