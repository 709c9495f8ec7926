// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Trailing windows measured from request time, not calendar weeks or months.
const (
	weeklyWindow  = 7 * 24 * time.Hour
	monthlyWindow = 30 * 24 * time.Hour
)

// Period selects the time window of a leaderboard.
type Period string

// Supported periods.
const (
	PeriodAll     Period = "all"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a period query value. Empty input means all-time.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PeriodAll:
		return PeriodAll, nil
	case PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q: %w", s, ErrValidation)
	}
}

// Start returns the activity cutoff for the period, or nil for all-time.
func (p Period) Start(now time.Time) *time.Time {
	var start time.Time
	switch p {
	case PeriodWeekly:
		start = now.Add(-weeklyWindow)
	case PeriodMonthly:
		start = now.Add(-monthlyWindow)
	default:
		return nil
	}
	return &start
}

// Category selects which point source feeds the total.
type Category string

// Supported categories.
const (
	CategoryAll        Category = "all"
	CategoryQuiz       Category = "quiz"
	CategoryProjects   Category = "projects"
	CategoryFormations Category = "formations"
)

// ParseCategory validates a category query value. Empty input means all.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CategoryAll:
		return CategoryAll, nil
	case CategoryQuiz, CategoryProjects, CategoryFormations:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q: %w", s, ErrValidation)
	}
}

// Scope is a (period, category) pair whose snapshot fields are stored
// independently of every other scope.
type Scope struct {
	Period   Period
	Category Category
}

// Key renders the scope as "period/category".
func (s Scope) Key() string {
	return string(s.Period) + "/" + string(s.Category)
}

// String implements fmt.Stringer.
func (s Scope) String() string { return s.Key() }

// AllScopes enumerates every scope, period-major.
func AllScopes() []Scope {
	periods := []Period{PeriodAll, PeriodWeekly, PeriodMonthly}
	categories := []Category{CategoryAll, CategoryQuiz, CategoryProjects, CategoryFormations}
	scopes := make([]Scope, 0, len(periods)*len(categories))
	for _, p := range periods {
		for _, c := range categories {
			scopes = append(scopes, Scope{Period: p, Category: c})
		}
	}
	return scopes
}
