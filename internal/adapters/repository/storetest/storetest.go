// Package storetest checks a repository.Store implementation against the
// behaviour every backend must share.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/okian/learnrank/internal/adapters/repository"
	"github.com/okian/learnrank/internal/domain/model"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) repository.Store

func learner(id string) model.User {
	return model.User{ID: id, FirstName: "L", LastName: id, Email: id + "@example.com", Role: model.RoleUser, Approved: true}
}

// Run executes the shared store checks.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ListEligibleKeepsInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		admin := learner("admin")
		admin.Role = model.RoleAdmin
		pending := learner("pending")
		pending.Approved = false
		for _, u := range []model.User{learner("c"), admin, learner("a"), pending, learner("b")} {
			if err := s.Save(ctx, u); err != nil {
				t.Fatalf("save %s: %v", u.ID, err)
			}
		}
		// Re-saving must not move a user to the end.
		if err := s.Save(ctx, learner("c")); err != nil {
			t.Fatalf("resave: %v", err)
		}

		got, err := s.ListEligible(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var ids []string
		for _, u := range got {
			ids = append(ids, u.ID)
		}
		if want := []string{"c", "a", "b"}; !reflect.DeepEqual(ids, want) {
			t.Errorf("expected %v, got %v", want, ids)
		}
	})

	t.Run("GetUnknownUser", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, "ghost"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := s.ApplySnapshot(ctx, "ghost", model.SnapshotUpdate{Scope: model.Scope{Period: model.PeriodAll, Category: model.CategoryAll}}); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected ErrNotFound from ApplySnapshot, got %v", err)
		}
		if _, err := s.AddManualBadge(ctx, "ghost", "Mentor"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected ErrNotFound from AddManualBadge, got %v", err)
		}
	})

	t.Run("GetRoundTripsActivity", func(t *testing.T) {
		s := newStore(t)
		u := learner("u1")
		u.QuizAttempts = []model.QuizAttempt{{QuizID: "q1", Score: 80, TakenAt: at}}
		u.TakenProjects = []string{"p1"}
		u.Certificates = []model.Certificate{{ID: "c1", IssuedAt: at}}
		if err := s.Save(ctx, u); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(got.QuizAttempts) != 1 || got.QuizAttempts[0].Score != 80 || !got.QuizAttempts[0].TakenAt.Equal(at) {
			t.Errorf("unexpected attempts %+v", got.QuizAttempts)
		}
		if !reflect.DeepEqual(got.TakenProjects, []string{"p1"}) {
			t.Errorf("unexpected projects %v", got.TakenProjects)
		}
		if len(got.Certificates) != 1 {
			t.Errorf("unexpected certificates %v", got.Certificates)
		}
	})

	t.Run("SnapshotWritesOnlyOwnedFields", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save(ctx, learner("u1")); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := s.SetStanding(ctx, "u1", model.Standing{Points: 321, Badges: []string{"Mentor"}}); err != nil {
			t.Fatalf("standing: %v", err)
		}
		global := model.Scope{Period: model.PeriodAll, Category: model.CategoryAll}
		weeklyQuiz := model.Scope{Period: model.PeriodWeekly, Category: model.CategoryQuiz}
		if err := s.ApplySnapshot(ctx, "u1", model.SnapshotUpdate{Scope: global, Rank: 2, Points: 321, At: at}); err != nil {
			t.Fatalf("apply global: %v", err)
		}
		later := at.Add(time.Minute)
		if err := s.ApplySnapshot(ctx, "u1", model.SnapshotUpdate{Scope: weeklyQuiz, Rank: 7, Points: 40, At: later}); err != nil {
			t.Fatalf("apply weekly quiz: %v", err)
		}

		got, err := s.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		st := got.Stats
		if st.GlobalRank == nil || *st.GlobalRank != 2 || st.GlobalPoints != 321 {
			t.Errorf("global fields changed: rank=%v points=%d", st.GlobalRank, st.GlobalPoints)
		}
		if st.QuizRank != nil || st.WeeklyRank != nil {
			t.Errorf("weekly/quiz scope leaked into flat fields: quiz=%v weekly=%v", st.QuizRank, st.WeeklyRank)
		}
		if e, ok := st.Scopes[weeklyQuiz.Key()]; !ok || e.Rank != 7 || e.Points != 40 {
			t.Errorf("missing scoped entry: %+v", st.Scopes)
		}
		if st.LastUpdated == nil || !st.LastUpdated.Equal(later) {
			t.Errorf("expected lastUpdated %v, got %v", later, st.LastUpdated)
		}
		if got.Points != 321 || !reflect.DeepEqual(got.Badges, []string{"Mentor"}) {
			t.Errorf("snapshot touched standing: points=%d badges=%v", got.Points, got.Badges)
		}
	})

	t.Run("ManualBadges", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save(ctx, learner("u1")); err != nil {
			t.Fatalf("save: %v", err)
		}
		if ok, err := s.AddManualBadge(ctx, "u1", "Mentor"); err != nil || !ok {
			t.Fatalf("first add: ok=%v err=%v", ok, err)
		}
		if ok, err := s.AddManualBadge(ctx, "u1", "Mentor"); err != nil || ok {
			t.Errorf("duplicate add: ok=%v err=%v", ok, err)
		}
		if ok, _ := s.AddManualBadge(ctx, "u1", "Helper"); !ok {
			t.Errorf("second badge rejected")
		}

		got, _ := s.Get(ctx, "u1")
		if !reflect.DeepEqual(got.ManualBadges, []string{"Mentor", "Helper"}) {
			t.Errorf("unexpected manual badges %v", got.ManualBadges)
		}
		if !reflect.DeepEqual(got.Badges, []string{"Mentor", "Helper"}) {
			t.Errorf("unexpected badges %v", got.Badges)
		}

		observed, err := s.ObservedBadges(ctx)
		if err != nil || len(observed) != 2 {
			t.Errorf("observed badges: %v %v", observed, err)
		}

		if ok, err := s.RemoveManualBadge(ctx, "u1", "Ghost"); err != nil || ok {
			t.Errorf("remove absent: ok=%v err=%v", ok, err)
		}
		if ok, err := s.RemoveManualBadge(ctx, "u1", "Mentor"); err != nil || !ok {
			t.Errorf("remove: ok=%v err=%v", ok, err)
		}
		got, _ = s.Get(ctx, "u1")
		if !reflect.DeepEqual(got.ManualBadges, []string{"Helper"}) || !reflect.DeepEqual(got.Badges, []string{"Helper"}) {
			t.Errorf("after remove: manual=%v badges=%v", got.ManualBadges, got.Badges)
		}
	})

	t.Run("Count", func(t *testing.T) {
		s := newStore(t)
		admin := learner("admin")
		admin.Role = model.RoleAdmin
		for _, u := range []model.User{learner("a"), learner("b"), admin} {
			if err := s.Save(ctx, u); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
		if err := s.SetStanding(ctx, "a", model.Standing{Points: 10}); err != nil {
			t.Fatalf("standing: %v", err)
		}
		total, withPoints, err := s.Count(ctx)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if total != 2 || withPoints != 1 {
			t.Errorf("expected 2/1, got %d/%d", total, withPoints)
		}
	})

	t.Run("Reference", func(t *testing.T) {
		s := newStore(t)
		if err := s.SaveProject(ctx, model.Project{ID: "p1", Status: model.ProjectCompleted, Difficulty: model.ProjectAdvanced}); err != nil {
			t.Fatalf("save project: %v", err)
		}
		if err := s.SaveQuiz(ctx, model.Quiz{ID: "q1", PassingScore: 70, Difficulty: model.QuizHard}); err != nil {
			t.Fatalf("save quiz: %v", err)
		}
		projects, err := s.Projects(ctx)
		if err != nil || len(projects) != 1 || projects[0].Difficulty != model.ProjectAdvanced {
			t.Errorf("projects: %+v %v", projects, err)
		}
		quizzes, err := s.Quizzes(ctx)
		if err != nil || len(quizzes) != 1 || quizzes[0].PassingScore != 70 {
			t.Errorf("quizzes: %+v %v", quizzes, err)
		}
	})

	t.Run("ConcurrentScopeWrites", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save(ctx, learner("u1")); err != nil {
			t.Fatalf("save: %v", err)
		}
		var wg sync.WaitGroup
		for i, scope := range model.AllScopes() {
			wg.Add(1)
			go func(i int, scope model.Scope) {
				defer wg.Done()
				if err := s.ApplySnapshot(ctx, "u1", model.SnapshotUpdate{Scope: scope, Rank: i + 1, Points: i * 10, At: at}); err != nil {
					t.Errorf("apply %s: %v", scope, err)
				}
			}(i, scope)
		}
		wg.Wait()

		got, _ := s.Get(ctx, "u1")
		for i, scope := range model.AllScopes() {
			e, ok := got.Stats.Scopes[scope.Key()]
			if !ok || e.Rank != i+1 || e.Points != i*10 {
				t.Errorf("scope %s: %+v", scope, e)
			}
		}
	})
}
