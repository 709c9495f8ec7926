package redisstore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/okian/learnrank/internal/adapters/repository"
	"github.com/okian/learnrank/internal/adapters/repository/storetest"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), WithKeyPrefix("test"))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestStoreKeyLayout(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	u := model.User{ID: "u1", Email: "u1@example.com", Role: model.RoleUser, Approved: true}
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	weekly := model.Scope{Period: model.PeriodWeekly, Category: model.CategoryAll}
	if err := s.ApplySnapshot(ctx, "u1", model.SnapshotUpdate{Scope: weekly, Rank: 3, Points: 90, At: at}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := s.AddManualBadge(ctx, "u1", "Mentor"); err != nil {
		t.Fatalf("add badge: %v", err)
	}

	if !mr.Exists("test:user:u1") {
		t.Error("expected user document key")
	}
	if got := mr.HGet("test:user:u1:stats", model.FieldWeeklyRank); got != "3" {
		t.Errorf("expected weeklyRank 3, got %q", got)
	}
	if got := mr.HGet("test:user:u1:stats", "scope:weekly:all:points"); got != "90" {
		t.Errorf("expected scoped points 90, got %q", got)
	}
	if got := mr.HGet("test:user:u1:stats", model.FieldGlobalRank); got != "" {
		t.Errorf("weekly write leaked into globalRank: %q", got)
	}
	members, err := mr.ZMembers("test:user:u1:manual_badges")
	if err != nil || len(members) != 1 || members[0] != "Mentor" {
		t.Errorf("unexpected manual badges %v (%v)", members, err)
	}
}

func TestStoreSaveReplacesStanding(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	rank := 4
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	u := model.User{
		ID: "u1", Role: model.RoleUser, Approved: true,
		Points: 50, Badges: []string{"Mentor", "Project-Beginner"}, ManualBadges: []string{"Mentor"},
		Stats: model.LeaderboardStats{
			GlobalRank: &rank, GlobalPoints: 50, LastUpdated: &at,
			Scopes: map[string]model.ScopeStanding{"all/all": {Rank: 4, Points: 50, LastUpdated: at}},
		},
	}
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Points != 50 || len(got.Badges) != 2 || len(got.ManualBadges) != 1 {
		t.Errorf("standing not restored: %+v", got)
	}
	if got.Stats.GlobalRank == nil || *got.Stats.GlobalRank != 4 {
		t.Errorf("rank not restored: %v", got.Stats.GlobalRank)
	}
	if e := got.Stats.Scopes["all/all"]; e.Rank != 4 || !e.LastUpdated.Equal(at) {
		t.Errorf("scoped entry not restored: %+v", e)
	}

	u.ManualBadges = nil
	u.Badges = nil
	u.Points = 0
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = s.Get(ctx, "u1")
	if len(got.ManualBadges) != 0 || len(got.Badges) != 0 || got.Points != 0 {
		t.Errorf("resave kept stale standing: %+v", got)
	}
}

func TestStoreSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	var logs bytes.Buffer
	log, err := logger.New(&logs, logger.FormatText)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), WithKeyPrefix("test"), WithLogger(log))
	t.Cleanup(func() { _ = s.Close() })

	for _, id := range []string{"good1", "bad", "good2"} {
		if err := s.Save(ctx, model.User{ID: id, Role: model.RoleUser, Approved: true}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := mr.Set("test:user:bad", "{not json"); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	mr.HSet("test:user:good2:stats", "points", "oops")

	users, err := s.ListEligible(ctx)
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(users) != 1 || users[0].ID != "good1" {
		t.Fatalf("expected only good1, got %+v", users)
	}
	out := logs.String()
	for _, id := range []string{"bad", "good2"} {
		if !strings.Contains(out, "user_id="+id) {
			t.Errorf("expected a warning naming %s, got %q", id, out)
		}
	}

	if _, err := s.ObservedBadges(ctx); err != nil {
		t.Errorf("observed badges: %v", err)
	}

	_, err = s.Get(ctx, "bad")
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected a decode error for a single corrupt user, got %v", err)
	}
}

func TestOpenFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Open(ctx, "127.0.0.1:1", "", 0); err == nil {
		t.Error("expected ping failure")
	}
}
