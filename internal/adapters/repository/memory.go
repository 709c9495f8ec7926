package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/learnrank/internal/domain/model"
)

const memoryBackend = "memory"

// MemoryStore is an in-process Store. Reads return deep copies.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[string]*model.User
	userOrder []string

	projects     map[string]model.Project
	projectOrder []string
	quizzes      map[string]model.Quiz
	quizOrder    []string
}

// NewMemoryStore constructs an empty store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		users:    make(map[string]*model.User),
		projects: make(map[string]model.Project),
		quizzes:  make(map[string]model.Quiz),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) putUser(u model.User) {
	if _, ok := s.users[u.ID]; !ok {
		s.userOrder = append(s.userOrder, u.ID)
	}
	c := u.Clone()
	s.users[u.ID] = &c
}

func (s *MemoryStore) putProject(p model.Project) {
	if _, ok := s.projects[p.ID]; !ok {
		s.projectOrder = append(s.projectOrder, p.ID)
	}
	s.projects[p.ID] = p
}

func (s *MemoryStore) putQuiz(q model.Quiz) {
	if _, ok := s.quizzes[q.ID]; !ok {
		s.quizOrder = append(s.quizOrder, q.ID)
	}
	s.quizzes[q.ID] = q
}

// ListEligible implements UserStore.ListEligible.
func (s *MemoryStore) ListEligible(_ context.Context) ([]model.User, error) {
	defer Observe(memoryBackend, "list_eligible", time.Now(), nil)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		if u := s.users[id]; u.Eligible() {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

// Get implements UserStore.Get.
func (s *MemoryStore) Get(_ context.Context, id string) (u model.User, err error) {
	defer func(start time.Time) { Observe(memoryBackend, "get", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return stored.Clone(), nil
}

// Save implements UserStore.Save.
func (s *MemoryStore) Save(_ context.Context, u model.User) error {
	if u.ID == "" {
		return ErrInvalidID
	}
	defer Observe(memoryBackend, "save", time.Now(), nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putUser(u)
	return nil
}

// update runs fn on the stored user under the write lock.
func (s *MemoryStore) update(op, id string, fn func(u *model.User)) (err error) {
	defer func(start time.Time) { Observe(memoryBackend, op, start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s %q: %w", op, id, ErrNotFound)
	}
	fn(u)
	return nil
}

// ApplySnapshot implements UserStore.ApplySnapshot.
func (s *MemoryStore) ApplySnapshot(_ context.Context, id string, upd model.SnapshotUpdate) error {
	return s.update("apply_snapshot", id, func(u *model.User) {
		u.Stats.Apply(upd)
	})
}

// SetStanding implements UserStore.SetStanding.
func (s *MemoryStore) SetStanding(_ context.Context, id string, st model.Standing) error {
	return s.update("set_standing", id, func(u *model.User) {
		u.Points = st.Points
		u.Badges = append([]string{}, st.Badges...)
	})
}

// AddManualBadge implements UserStore.AddManualBadge.
func (s *MemoryStore) AddManualBadge(_ context.Context, id, badge string) (bool, error) {
	added := false
	err := s.update("add_manual_badge", id, func(u *model.User) {
		if u.HasManualBadge(badge) {
			return
		}
		added = true
		u.ManualBadges = append(u.ManualBadges, badge)
		if !contains(u.Badges, badge) {
			u.Badges = append(u.Badges, badge)
		}
	})
	return added, err
}

// RemoveManualBadge implements UserStore.RemoveManualBadge.
func (s *MemoryStore) RemoveManualBadge(_ context.Context, id, badge string) (bool, error) {
	removed := false
	err := s.update("remove_manual_badge", id, func(u *model.User) {
		if !u.HasManualBadge(badge) {
			return
		}
		removed = true
		u.ManualBadges = without(u.ManualBadges, badge)
		u.Badges = without(u.Badges, badge)
	})
	return removed, err
}

// ObservedBadges implements UserStore.ObservedBadges.
func (s *MemoryStore) ObservedBadges(_ context.Context) ([]string, error) {
	defer Observe(memoryBackend, "observed_badges", time.Now(), nil)
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, id := range s.userOrder {
		u := s.users[id]
		for _, list := range [][]string{u.Badges, u.ManualBadges} {
			for _, b := range list {
				if _, ok := seen[b]; ok {
					continue
				}
				seen[b] = struct{}{}
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// Count implements UserStore.Count.
func (s *MemoryStore) Count(_ context.Context) (total, withPoints int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if !u.Eligible() {
			continue
		}
		total++
		if u.Points > 0 {
			withPoints++
		}
	}
	return total, withPoints, nil
}

// Projects implements ReferenceStore.Projects.
func (s *MemoryStore) Projects(_ context.Context) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Project, 0, len(s.projectOrder))
	for _, id := range s.projectOrder {
		out = append(out, s.projects[id])
	}
	return out, nil
}

// Quizzes implements ReferenceStore.Quizzes.
func (s *MemoryStore) Quizzes(_ context.Context) ([]model.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Quiz, 0, len(s.quizOrder))
	for _, id := range s.quizOrder {
		out = append(out, s.quizzes[id])
	}
	return out, nil
}

// SaveProject implements ReferenceStore.SaveProject.
func (s *MemoryStore) SaveProject(_ context.Context, p model.Project) error {
	if p.ID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putProject(p)
	return nil
}

// SaveQuiz implements ReferenceStore.SaveQuiz.
func (s *MemoryStore) SaveQuiz(_ context.Context, q model.Quiz) error {
	if q.ID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putQuiz(q)
	return nil
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error { return nil }

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
