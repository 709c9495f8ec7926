package model

import "time"

// defaultPassingScore applies when a quiz is unknown or has no threshold.
const defaultPassingScore = 50

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// Project statuses.
const (
	ProjectUpcoming   ProjectStatus = "upcoming"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
)

// ProjectDifficulty grades a project.
type ProjectDifficulty string

// Project difficulties.
const (
	ProjectBeginner     ProjectDifficulty = "Beginner"
	ProjectIntermediate ProjectDifficulty = "Intermediate"
	ProjectAdvanced     ProjectDifficulty = "Advanced"
)

// Project is a claimable project definition.
type Project struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Status     ProjectStatus     `json:"status"`
	Difficulty ProjectDifficulty `json:"difficulty"`
	TakenBy    string            `json:"takenBy,omitempty"`
	TakenAt    *time.Time        `json:"takenAt,omitempty"`
}

// QuizDifficulty grades a quiz.
type QuizDifficulty string

// Quiz difficulties.
const (
	QuizEasy   QuizDifficulty = "easy"
	QuizMedium QuizDifficulty = "medium"
	QuizHard   QuizDifficulty = "hard"
)

// Quiz is a quiz definition. A zero PassingScore means "not set".
type Quiz struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	PassingScore int            `json:"passingScore,omitempty"`
	Difficulty   QuizDifficulty `json:"difficulty"`
}

// Threshold returns the passing score, falling back to 50 when unset.
func (q Quiz) Threshold() int {
	if q.PassingScore <= 0 {
		return defaultPassingScore
	}
	return q.PassingScore
}

// DefaultThreshold is the passing score used when the quiz cannot be found.
func DefaultThreshold() int { return defaultPassingScore }
