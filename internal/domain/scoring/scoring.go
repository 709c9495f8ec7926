// Package scoring turns a user's raw activity into leaderboard points.
package scoring

import (
	"math"
	"time"

	"github.com/okian/learnrank/internal/domain/model"
)

// Point weights.
const (
	hardMultiplier   = 1.5
	mediumMultiplier = 1.2
	easyMultiplier   = 1.0

	advancedProjectPoints     = 200
	intermediateProjectPoints = 150
	beginnerProjectPoints     = 100
	inProgressProjectPoints   = 25

	certificatePoints = 150
)

// Result holds the category totals for one user plus the all-time
// counters that drive badges.
type Result struct {
	QuizPoints      int
	ProjectPoints   int
	FormationPoints int
	TotalPoints     int

	CompletedProjects int
	PassedQuizzes     int
	Certificates      int
}

// Aggregate computes a user's points. periodStart, when non-nil, drops
// activity older than the cutoff; category selects what TotalPoints sums.
// Badge counters ignore the cutoff.
func Aggregate(u *model.User, ref *Reference, periodStart *time.Time, category model.Category) Result {
	var res Result

	for _, attempt := range u.QuizAttempts {
		threshold, multiplier := quizWeights(ref, attempt.QuizID)
		if attempt.Score < threshold {
			continue
		}
		res.PassedQuizzes++
		if before(attempt.TakenAt, periodStart) {
			continue
		}
		res.QuizPoints += int(math.Round(float64(attempt.Score) * multiplier))
	}

	for _, id := range u.TakenProjects {
		project, ok := ref.Project(id)
		if !ok {
			continue
		}
		if project.Status == model.ProjectCompleted {
			res.CompletedProjects++
		}
		if project.TakenAt != nil && before(*project.TakenAt, periodStart) {
			continue
		}
		res.ProjectPoints += projectPoints(project)
	}

	res.Certificates = len(u.Certificates)
	counted := 0
	for _, c := range u.Certificates {
		if !before(c.IssuedAt, periodStart) {
			counted++
		}
	}
	res.FormationPoints = counted * certificatePoints

	switch category {
	case model.CategoryQuiz:
		res.TotalPoints = res.QuizPoints
	case model.CategoryProjects:
		res.TotalPoints = res.ProjectPoints
	case model.CategoryFormations:
		res.TotalPoints = res.FormationPoints
	default:
		res.TotalPoints = res.QuizPoints + res.ProjectPoints + res.FormationPoints
	}
	return res
}

// quizWeights returns the pass threshold and difficulty multiplier for a
// quiz. Unknown quizzes keep the default threshold and count as easy.
func quizWeights(ref *Reference, quizID string) (int, float64) {
	quiz, ok := ref.Quiz(quizID)
	if !ok {
		return model.DefaultThreshold(), easyMultiplier
	}
	switch quiz.Difficulty {
	case model.QuizHard:
		return quiz.Threshold(), hardMultiplier
	case model.QuizMedium:
		return quiz.Threshold(), mediumMultiplier
	default:
		return quiz.Threshold(), easyMultiplier
	}
}

func projectPoints(p model.Project) int {
	switch p.Status {
	case model.ProjectCompleted:
		switch p.Difficulty {
		case model.ProjectAdvanced:
			return advancedProjectPoints
		case model.ProjectIntermediate:
			return intermediateProjectPoints
		default:
			return beginnerProjectPoints
		}
	case model.ProjectInProgress:
		return inProgressProjectPoints
	default:
		return 0
	}
}

// before reports whether t falls strictly before an active cutoff.
func before(t time.Time, cutoff *time.Time) bool {
	return cutoff != nil && t.Before(*cutoff)
}
