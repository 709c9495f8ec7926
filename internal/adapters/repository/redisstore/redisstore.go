// Package redisstore implements the repository contracts on Redis.
//
// Layout, for prefix p:
//
//	p:users                     ZSET  user ids scored by insertion sequence
//	p:user:{id}                 JSON  identity and raw activity
//	p:user:{id}:manual_badges   ZSET  granted badges scored by grant sequence
//	p:user:{id}:stats           HASH  points, badges and snapshot fields
//	p:projects, p:quizzes       HASH  id to JSON
//
// Snapshot writes are HSETs of the fields owned by one scope, so writes of
// different scopes never overwrite each other.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/learnrank/internal/adapters/repository"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/pkg/logger"
	"github.com/okian/learnrank/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	backend       = "redis"
	defaultPrefix = "learnrank"
	maxTxRetries  = 8

	fieldPoints      = "points"
	fieldBadges      = "badges"
	fieldLastUpdated = "lastUpdated"
	scopeFieldPrefix = "scope"
)

// Store is a repository.Store backed by Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	log    logger.Logger
}

var _ repository.Store = (*Store)(nil)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithKeyPrefix namespaces every key under prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLogger sets the logger used to report skipped records.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to addr and verifies the connection.
func Open(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(client, opts...), nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *Store) usersKey() string           { return s.key("users") }
func (s *Store) seqKey() string             { return s.key("seq") }
func (s *Store) docKey(id string) string    { return s.key("user", id) }
func (s *Store) manualKey(id string) string { return s.key("user", id, "manual_badges") }
func (s *Store) statsKey(id string) string  { return s.key("user", id, "stats") }
func (s *Store) projectsKey() string        { return s.key("projects") }
func (s *Store) quizzesKey() string         { return s.key("quizzes") }

// profile is the identity and raw activity part of a user.
type profile struct {
	ID            string              `json:"id"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Email         string              `json:"email"`
	Role          model.Role          `json:"role"`
	Approved      bool                `json:"isApproved"`
	AvatarURL     string              `json:"avatar,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	QuizAttempts  []model.QuizAttempt `json:"quizzes,omitempty"`
	TakenProjects []string            `json:"projectsTaken,omitempty"`
	Certificates  []model.Certificate `json:"certificates,omitempty"`
}

func toProfile(u model.User) profile {
	return profile{
		ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email,
		Role: u.Role, Approved: u.Approved, AvatarURL: u.AvatarURL, CreatedAt: u.CreatedAt,
		QuizAttempts: u.QuizAttempts, TakenProjects: u.TakenProjects, Certificates: u.Certificates,
	}
}

func (p profile) user() model.User {
	return model.User{
		ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email,
		Role: p.Role, Approved: p.Approved, AvatarURL: p.AvatarURL, CreatedAt: p.CreatedAt,
		QuizAttempts: p.QuizAttempts, TakenProjects: p.TakenProjects, Certificates: p.Certificates,
	}
}

// Save implements repository.UserStore.Save.
func (s *Store) Save(ctx context.Context, u model.User) (err error) {
	defer func(start time.Time) { repository.Observe(backend, "save", start, err) }(time.Now())
	if u.ID == "" {
		return repository.ErrInvalidID
	}
	doc, err := json.Marshal(toProfile(u))
	if err != nil {
		return fmt.Errorf("encode user %s: %w", u.ID, err)
	}

	n := int64(len(u.ManualBadges))
	last, err := s.client.IncrBy(ctx, s.seqKey(), n+1).Result()
	if err != nil {
		return fmt.Errorf("allocate sequence: %w", err)
	}
	first := last - n

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(u.ID), doc, 0)
		pipe.ZAddNX(ctx, s.usersKey(), redis.Z{Score: float64(first), Member: u.ID})
		pipe.Del(ctx, s.statsKey(u.ID), s.manualKey(u.ID))
		pipe.HSet(ctx, s.statsKey(u.ID), encodeStanding(u))
		for i, b := range u.ManualBadges {
			pipe.ZAddNX(ctx, s.manualKey(u.ID), redis.Z{Score: float64(first + 1 + int64(i)), Member: b})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

// Get implements repository.UserStore.Get.
func (s *Store) Get(ctx context.Context, id string) (u model.User, err error) {
	defer func(start time.Time) { repository.Observe(backend, "get", start, err) }(time.Now())
	users, err := s.load(ctx, []string{id}, false)
	if err != nil {
		return model.User{}, err
	}
	if len(users) == 0 {
		return model.User{}, fmt.Errorf("get %q: %w", id, repository.ErrNotFound)
	}
	return users[0], nil
}

// ListEligible implements repository.UserStore.ListEligible.
func (s *Store) ListEligible(ctx context.Context) (out []model.User, err error) {
	defer func(start time.Time) { repository.Observe(backend, "list_eligible", start, err) }(time.Now())
	ids, err := s.client.ZRange(ctx, s.usersKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := s.load(ctx, ids, true)
	if err != nil {
		return nil, err
	}
	out = make([]model.User, 0, len(users))
	for _, u := range users {
		if u.Eligible() {
			out = append(out, u)
		}
	}
	return out, nil
}

// load fetches the given users in one round trip, skipping missing ones.
// With skipCorrupt set, a record that fails to decode is logged and left
// out instead of failing the whole batch.
func (s *Store) load(ctx context.Context, ids []string, skipCorrupt bool) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	type pending struct {
		doc    *redis.StringCmd
		stats  *redis.MapStringStringCmd
		manual *redis.StringSliceCmd
	}
	cmds := make([]pending, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pending{
				doc:    pipe.Get(ctx, s.docKey(id)),
				stats:  pipe.HGetAll(ctx, s.statsKey(id)),
				manual: pipe.ZRange(ctx, s.manualKey(id), 0, -1),
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load users: %w", err)
	}

	out := make([]model.User, 0, len(ids))
	for i, c := range cmds {
		raw, err := c.doc.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", ids[i], err)
		}
		u, err := decodeUser(raw, c.stats.Val())
		if err != nil {
			err = fmt.Errorf("%s: %w", ids[i], err)
			if !skipCorrupt {
				return nil, err
			}
			repository.Observe(backend, "decode", time.Now(), err)
			metrics.RecordComputationError()
			s.log.Warn(ctx, "skipping corrupt user record", logger.String("user_id", ids[i]), logger.Error(err))
			continue
		}
		u.ManualBadges = c.manual.Val()
		out = append(out, u)
	}
	return out, nil
}

func decodeUser(raw []byte, stats map[string]string) (model.User, error) {
	var p profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.User{}, fmt.Errorf("decode user: %w", err)
	}
	u := p.user()
	if err := decodeStanding(stats, &u); err != nil {
		return model.User{}, fmt.Errorf("decode stats: %w", err)
	}
	return u, nil
}

func (s *Store) exists(ctx context.Context, c redis.Cmdable, id string) error {
	n, err := c.Exists(ctx, s.docKey(id)).Result()
	if err != nil {
		return fmt.Errorf("lookup user %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", id, repository.ErrNotFound)
	}
	return nil
}

// ApplySnapshot implements repository.UserStore.ApplySnapshot.
func (s *Store) ApplySnapshot(ctx context.Context, id string, upd model.SnapshotUpdate) (err error) {
	defer func(start time.Time) { repository.Observe(backend, "apply_snapshot", start, err) }(time.Now())
	if err := s.exists(ctx, s.client, id); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.statsKey(id), snapshotFields(upd)).Err(); err != nil {
		return fmt.Errorf("write %s snapshot of %s: %w", upd.Scope, id, err)
	}
	return nil
}

// SetStanding implements repository.UserStore.SetStanding.
func (s *Store) SetStanding(ctx context.Context, id string, st model.Standing) (err error) {
	defer func(start time.Time) { repository.Observe(backend, "set_standing", start, err) }(time.Now())
	if err := s.exists(ctx, s.client, id); err != nil {
		return err
	}
	raw, err := json.Marshal(nonNil(st.Badges))
	if err != nil {
		return fmt.Errorf("encode badges: %w", err)
	}
	if err := s.client.HSet(ctx, s.statsKey(id), fieldPoints, st.Points, fieldBadges, string(raw)).Err(); err != nil {
		return fmt.Errorf("write standing of %s: %w", id, err)
	}
	return nil
}

// watch runs fn in an optimistic transaction, retrying on conflicts.
func (s *Store) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxTxRetries, redis.TxFailedErr)
}

// AddManualBadge implements repository.UserStore.AddManualBadge.
func (s *Store) AddManualBadge(ctx context.Context, id, badge string) (added bool, err error) {
	defer func(start time.Time) { repository.Observe(backend, "add_manual_badge", start, err) }(time.Now())
	manual, stats := s.manualKey(id), s.statsKey(id)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		added = false
		if err := s.exists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ZScore(ctx, manual, badge).Result(); err == nil {
			return nil
		} else if !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := readBadges(ctx, tx, stats)
		if err != nil {
			return err
		}
		if !contains(current, badge) {
			current = append(current, badge)
		}
		raw, err := json.Marshal(current)
		if err != nil {
			return err
		}
		seq, err := tx.Incr(ctx, s.seqKey()).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, manual, redis.Z{Score: float64(seq), Member: badge})
			pipe.HSet(ctx, stats, fieldBadges, string(raw))
			return nil
		})
		if err == nil {
			added = true
		}
		return err
	}, manual, stats)
	return added, err
}

// RemoveManualBadge implements repository.UserStore.RemoveManualBadge.
func (s *Store) RemoveManualBadge(ctx context.Context, id, badge string) (removed bool, err error) {
	defer func(start time.Time) { repository.Observe(backend, "remove_manual_badge", start, err) }(time.Now())
	manual, stats := s.manualKey(id), s.statsKey(id)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		removed = false
		if err := s.exists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ZScore(ctx, manual, badge).Result(); errors.Is(err, redis.Nil) {
			return nil
		} else if err != nil {
			return err
		}
		current, err := readBadges(ctx, tx, stats)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(without(current, badge))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, manual, badge)
			pipe.HSet(ctx, stats, fieldBadges, string(raw))
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, manual, stats)
	return removed, err
}

// ObservedBadges implements repository.UserStore.ObservedBadges.
func (s *Store) ObservedBadges(ctx context.Context) (out []string, err error) {
	defer func(start time.Time) { repository.Observe(backend, "observed_badges", start, err) }(time.Now())
	ids, err := s.client.ZRange(ctx, s.usersKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := s.load(ctx, ids, true)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out = []string{}
	for _, u := range users {
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

// Count implements repository.UserStore.Count.
func (s *Store) Count(ctx context.Context) (total, withPoints int, err error) {
	users, err := s.ListEligible(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, u := range users {
		if u.Points > 0 {
			withPoints++
		}
	}
	return len(users), withPoints, nil
}

// Projects implements repository.ReferenceStore.Projects.
func (s *Store) Projects(ctx context.Context) (out []model.Project, err error) {
	defer func(start time.Time) { repository.Observe(backend, "projects", start, err) }(time.Now())
	out, err = readCatalogue[model.Project](ctx, s.client, s.projectsKey())
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// Quizzes implements repository.ReferenceStore.Quizzes.
func (s *Store) Quizzes(ctx context.Context) (out []model.Quiz, err error) {
	defer func(start time.Time) { repository.Observe(backend, "quizzes", start, err) }(time.Now())
	out, err = readCatalogue[model.Quiz](ctx, s.client, s.quizzesKey())
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// SaveProject implements repository.ReferenceStore.SaveProject.
func (s *Store) SaveProject(ctx context.Context, p model.Project) error {
	if p.ID == "" {
		return repository.ErrInvalidID
	}
	return writeCatalogue(ctx, s.client, s.projectsKey(), p.ID, p)
}

// SaveQuiz implements repository.ReferenceStore.SaveQuiz.
func (s *Store) SaveQuiz(ctx context.Context, q model.Quiz) error {
	if q.ID == "" {
		return repository.ErrInvalidID
	}
	return writeCatalogue(ctx, s.client, s.quizzesKey(), q.ID, q)
}

func readCatalogue[T any](ctx context.Context, c redis.Cmdable, key string) ([]T, error) {
	all, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := make([]T, 0, len(all))
	for id, raw := range all {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", key, id, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func writeCatalogue(ctx context.Context, c redis.Cmdable, key, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", key, id, err)
	}
	return c.HSet(ctx, key, id, string(raw)).Err()
}

func readBadges(ctx context.Context, c redis.Cmdable, key string) ([]string, error) {
	raw, err := c.HGet(ctx, key, fieldBadges).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode badges: %w", err)
	}
	return out, nil
}

func scopeField(scope model.Scope, name string) string {
	return scopeFieldPrefix + ":" + string(scope.Period) + ":" + string(scope.Category) + ":" + name
}

// snapshotFields returns the hash fields one scope owns.
func snapshotFields(u model.SnapshotUpdate) map[string]any {
	fields := map[string]any{
		scopeField(u.Scope, "rank"):    u.Rank,
		scopeField(u.Scope, "points"):  u.Points,
		scopeField(u.Scope, "updated"): u.At.UTC().Format(time.RFC3339Nano),
		fieldLastUpdated:               u.At.UTC().Format(time.RFC3339Nano),
	}
	for name, v := range u.Fields() {
		fields[name] = v
	}
	return fields
}

// encodeStanding flattens a user's derived state into hash fields.
func encodeStanding(u model.User) map[string]any {
	raw, _ := json.Marshal(nonNil(u.Badges))
	fields := map[string]any{
		fieldPoints: u.Points,
		fieldBadges: string(raw),
	}
	st := u.Stats
	for name, rank := range map[string]*int{
		model.FieldGlobalRank:    st.GlobalRank,
		model.FieldQuizRank:      st.QuizRank,
		model.FieldProjectRank:   st.ProjectRank,
		model.FieldFormationRank: st.FormationRank,
		model.FieldWeeklyRank:    st.WeeklyRank,
		model.FieldMonthlyRank:   st.MonthlyRank,
	} {
		if rank != nil {
			fields[name] = *rank
		}
	}
	for name, points := range map[string]int{
		model.FieldGlobalPoints:    st.GlobalPoints,
		model.FieldQuizPoints:      st.QuizPoints,
		model.FieldProjectPoints:   st.ProjectPoints,
		model.FieldFormationPoints: st.FormationPoints,
		model.FieldWeeklyPoints:    st.WeeklyPoints,
		model.FieldMonthlyPoints:   st.MonthlyPoints,
	} {
		fields[name] = points
	}
	if st.LastUpdated != nil {
		fields[fieldLastUpdated] = st.LastUpdated.UTC().Format(time.RFC3339Nano)
	}
	for key, e := range st.Scopes {
		p, c, ok := strings.Cut(key, "/")
		if !ok {
			continue
		}
		scope := model.Scope{Period: model.Period(p), Category: model.Category(c)}
		fields[scopeField(scope, "rank")] = e.Rank
		fields[scopeField(scope, "points")] = e.Points
		fields[scopeField(scope, "updated")] = e.LastUpdated.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

// decodeStanding is the inverse of encodeStanding and snapshotFields.
func decodeStanding(fields map[string]string, u *model.User) error {
	for name, raw := range fields {
		switch {
		case name == fieldPoints:
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			u.Points = v
		case name == fieldBadges:
			if err := json.Unmarshal([]byte(raw), &u.Badges); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
		case name == fieldLastUpdated:
			at, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			u.Stats.LastUpdated = &at
		case strings.HasPrefix(name, scopeFieldPrefix+":"):
			if err := decodeScopeField(name, raw, &u.Stats); err != nil {
				return err
			}
		default:
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			u.Stats.SetField(name, v)
		}
	}
	return nil
}

func decodeScopeField(name, raw string, st *model.LeaderboardStats) error {
	parts := strings.Split(name, ":")
	if len(parts) != 4 {
		return fmt.Errorf("malformed scope field %q", name)
	}
	key := model.Scope{Period: model.Period(parts[1]), Category: model.Category(parts[2])}.Key()
	if st.Scopes == nil {
		st.Scopes = make(map[string]model.ScopeStanding)
	}
	e := st.Scopes[key]
	switch parts[3] {
	case "rank", "points":
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if parts[3] == "rank" {
			e.Rank = v
		} else {
			e.Points = v
		}
	case "updated":
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		e.LastUpdated = at
	default:
		return fmt.Errorf("malformed scope field %q", name)
	}
	st.Scopes[key] = e
	return nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

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
