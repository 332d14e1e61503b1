// Package services binds the personal-finance resources to the query cache:
// one fetch binding per read, one mutation per write, with the invalidation
// rules between them.
package services

import (
	"strconv"

	"fintrack/internal/query"
)

// Resource roots. Distinct resources never share a prefix, so invalidating
// one can never reach another.
var (
	transactionsRoot = query.NewKey("transactions")
	categoriesRoot   = query.NewKey("categories")
	dashboardRoot    = query.NewKey("dashboard")
	sessionRoot      = query.NewKey("session")
)

// TransactionsAllKey covers every cached transaction read.
func TransactionsAllKey() query.Key {
	return transactionsRoot
}

// TransactionListKey identifies one filtered, paginated list.
func TransactionListKey(f TransactionFilter) query.Key {
	return transactionsRoot.Child("list").WithFilters(f.params())
}

// CategoriesKey covers the category list.
func CategoriesKey() query.Key {
	return categoriesRoot
}

// DashboardKey covers both aggregate reads; transaction mutations invalidate
// this whole prefix.
func DashboardKey() query.Key {
	return dashboardRoot
}

// SummaryKey identifies the monthly summary for a period. Month 0 means the
// whole year.
func SummaryKey(year, month int) query.Key {
	return dashboardRoot.Child("summary").WithFilters(periodFilters(year, month))
}

// AggregationKey identifies the per-category aggregation for a period.
func AggregationKey(year, month int) query.Key {
	return dashboardRoot.Child("categories").WithFilters(periodFilters(year, month))
}

// SessionKey identifies the current-session read.
func SessionKey() query.Key {
	return sessionRoot.Child("current")
}

func periodFilters(year, month int) map[string]string {
	f := map[string]string{"year": strconv.Itoa(year)}
	if month > 0 {
		f["month"] = strconv.Itoa(month)
	}
	return f
}
