package model

import "time"

// Flat snapshot field names, as persisted on the user record.
const (
	FieldGlobalRank      = "globalRank"
	FieldGlobalPoints    = "globalPoints"
	FieldQuizRank        = "quizRank"
	FieldQuizPoints      = "quizPoints"
	FieldProjectRank     = "projectRank"
	FieldProjectPoints   = "projectPoints"
	FieldFormationRank   = "formationRank"
	FieldFormationPoints = "formationPoints"
	FieldWeeklyRank      = "weeklyRank"
	FieldWeeklyPoints    = "weeklyPoints"
	FieldMonthlyRank     = "monthlyRank"
	FieldMonthlyPoints   = "monthlyPoints"
)

// LeaderboardStats is the last persisted snapshot of a user's standings.
// Ranks stay nil until the owning scope has been computed once.
type LeaderboardStats struct {
	GlobalRank      *int `json:"globalRank"`
	GlobalPoints    int  `json:"globalPoints"`
	QuizRank        *int `json:"quizRank"`
	QuizPoints      int  `json:"quizPoints"`
	ProjectRank     *int `json:"projectRank"`
	ProjectPoints   int  `json:"projectPoints"`
	FormationRank   *int `json:"formationRank"`
	FormationPoints int  `json:"formationPoints"`
	WeeklyRank      *int `json:"weeklyRank"`
	WeeklyPoints    int  `json:"weeklyPoints"`
	MonthlyRank     *int `json:"monthlyRank"`
	MonthlyPoints   int  `json:"monthlyPoints"`

	LastUpdated *time.Time `json:"lastUpdated"`

	// Scopes holds one entry per computed scope, keyed by Scope.Key.
	Scopes map[string]ScopeStanding `json:"scopes,omitempty"`
}

// ScopeStanding is a user's rank and points within one scope.
type ScopeStanding struct {
	Rank        int       `json:"rank"`
	Points      int       `json:"points"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SnapshotUpdate is the write produced for one user by one scope.
type SnapshotUpdate struct {
	Scope  Scope
	Rank   int
	Points int
	At     time.Time
}

// Standing is what the administrator recompute writes on a user.
type Standing struct {
	Points int
	Badges []string
}

// FlatFields returns the flat rank/points field pair owned by the scope.
// Only the all-time category scopes and the all-category period scopes own
// a flat pair; every other scope is stored under Scopes alone.
func (s Scope) FlatFields() (rankField, pointsField string, ok bool) {
	switch {
	case s.Period == PeriodAll && s.Category == CategoryAll:
		return FieldGlobalRank, FieldGlobalPoints, true
	case s.Period == PeriodAll && s.Category == CategoryQuiz:
		return FieldQuizRank, FieldQuizPoints, true
	case s.Period == PeriodAll && s.Category == CategoryProjects:
		return FieldProjectRank, FieldProjectPoints, true
	case s.Period == PeriodAll && s.Category == CategoryFormations:
		return FieldFormationRank, FieldFormationPoints, true
	case s.Period == PeriodWeekly && s.Category == CategoryAll:
		return FieldWeeklyRank, FieldWeeklyPoints, true
	case s.Period == PeriodMonthly && s.Category == CategoryAll:
		return FieldMonthlyRank, FieldMonthlyPoints, true
	}
	return "", "", false
}

// Fields returns the flat fields this update writes, possibly none.
func (u SnapshotUpdate) Fields() map[string]int {
	fields := make(map[string]int, 2)
	if rankField, pointsField, ok := u.Scope.FlatFields(); ok {
		fields[rankField] = u.Rank
		fields[pointsField] = u.Points
	}
	return fields
}

// SetField assigns a flat field by name. It reports false for unknown names.
func (s *LeaderboardStats) SetField(name string, v int) bool {
	switch name {
	case FieldGlobalRank:
		s.GlobalRank = intPtr(v)
	case FieldGlobalPoints:
		s.GlobalPoints = v
	case FieldQuizRank:
		s.QuizRank = intPtr(v)
	case FieldQuizPoints:
		s.QuizPoints = v
	case FieldProjectRank:
		s.ProjectRank = intPtr(v)
	case FieldProjectPoints:
		s.ProjectPoints = v
	case FieldFormationRank:
		s.FormationRank = intPtr(v)
	case FieldFormationPoints:
		s.FormationPoints = v
	case FieldWeeklyRank:
		s.WeeklyRank = intPtr(v)
	case FieldWeeklyPoints:
		s.WeeklyPoints = v
	case FieldMonthlyRank:
		s.MonthlyRank = intPtr(v)
	case FieldMonthlyPoints:
		s.MonthlyPoints = v
	default:
		return false
	}
	return true
}

// Apply writes exactly the fields owned by the update's scope.
func (s *LeaderboardStats) Apply(u SnapshotUpdate) {
	for name, v := range u.Fields() {
		s.SetField(name, v)
	}
	if s.Scopes == nil {
		s.Scopes = make(map[string]ScopeStanding)
	}
	s.Scopes[u.Scope.Key()] = ScopeStanding{Rank: u.Rank, Points: u.Points, LastUpdated: u.At}
	at := u.At
	s.LastUpdated = &at
}

// Clone returns a deep copy.
func (s LeaderboardStats) Clone() LeaderboardStats {
	c := s
	c.GlobalRank = clonePtr(s.GlobalRank)
	c.QuizRank = clonePtr(s.QuizRank)
	c.ProjectRank = clonePtr(s.ProjectRank)
	c.FormationRank = clonePtr(s.FormationRank)
	c.WeeklyRank = clonePtr(s.WeeklyRank)
	c.MonthlyRank = clonePtr(s.MonthlyRank)
	c.LastUpdated = clonePtr(s.LastUpdated)
	if s.Scopes != nil {
		c.Scopes = make(map[string]ScopeStanding, len(s.Scopes))
		for k, v := range s.Scopes {
			c.Scopes[k] = v
		}
	}
	return c
}

func intPtr(v int) *int { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
