package model

import (
	"strings"
	"time"
)

// fallbackName is shown when a user has neither first nor last name.
const fallbackName = "User"

// Role distinguishes learners from administrators.
type Role string

// Roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// QuizAttempt is the retained attempt of a user on one quiz.
type QuizAttempt struct {
	QuizID  string    `json:"quiz"`
	Title   string    `json:"title,omitempty"`
	Score   int       `json:"score"`
	TakenAt time.Time `json:"date"`
}

// Certificate is issued when a user completes a formation.
type Certificate struct {
	ID        string    `json:"id"`
	QuizID    string    `json:"quizId,omitempty"`
	QuizTitle string    `json:"quizTitle,omitempty"`
	Score     int       `json:"score,omitempty"`
	IssuedAt  time.Time `json:"date"`
}

// User holds the scoring-relevant subset of a platform user: identity, raw
// activity written by external flows, and the derived standing the engine
// maintains.
type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Approved  bool      `json:"isApproved"`
	AvatarURL string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	QuizAttempts  []QuizAttempt `json:"quizzes,omitempty"`
	TakenProjects []string      `json:"projectsTaken,omitempty"`
	Certificates  []Certificate `json:"certificates,omitempty"`

	// ManualBadges are granted by administrators and survive recomputation.
	ManualBadges []string `json:"manualBadges,omitempty"`

	// Points and Badges are written by the admin recompute.
	Points int              `json:"points"`
	Badges []string         `json:"badges,omitempty"`
	Stats  LeaderboardStats `json:"leaderboardStats"`
}

// Eligible reports whether the user takes part in rankings.
func (u *User) Eligible() bool {
	return u.Role == RoleUser && u.Approved
}

// DisplayName returns "First Last", or a placeholder when both are empty.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return fallbackName
	}
	return name
}

// HasManualBadge reports whether badge was granted by an administrator.
func (u *User) HasManualBadge(badge string) bool {
	for _, b := range u.ManualBadges {
		if b == badge {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with a store.
func (u *User) Clone() User {
	c := *u
	c.QuizAttempts = append([]QuizAttempt(nil), u.QuizAttempts...)
	c.TakenProjects = append([]string(nil), u.TakenProjects...)
	c.Certificates = append([]Certificate(nil), u.Certificates...)
	c.ManualBadges = append([]string(nil), u.ManualBadges...)
	c.Badges = append([]string(nil), u.Badges...)
	c.Stats = u.Stats.Clone()
	return c
}
