// Package seed generates synthetic learners, projects and quizzes for demos
// and load tests.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	repository "github.com/okian/learnrank/internal/adapters/repository"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Generation defaults.
const (
	defaultProjects = 30
	defaultQuizzes  = 20
	defaultWorkers  = 8

	maxAttempts     = 25
	maxClaims       = 12
	maxCertificates = 6
	historyDays     = 90

	adminEvery      = 25
	unapprovedEvery = 10
)

// ErrInvalidConfig is returned for a configuration that cannot generate data.
var ErrInvalidConfig = errors.New("invalid seed config")

// Config controls dataset generation.
type Config struct {
	Users    int       // number of accounts, admins and unapproved included
	Projects int       // size of the project catalogue
	Quizzes  int       // size of the quiz catalogue
	Seed     int64     // source for every random choice
	Now      time.Time // reference time for activity dates
}

// Dataset is a generated platform.
type Dataset struct {
	Users    []model.User
	Projects []model.Project
	Quizzes  []model.Quiz
}

// Stats summarises a load.
type Stats struct {
	Users    int
	Eligible int
	Projects int
	Quizzes  int
	Duration time.Duration
}

func (c Config) withDefaults() Config {
	if c.Projects == 0 {
		c.Projects = defaultProjects
	}
	if c.Quizzes == 0 {
		c.Quizzes = defaultQuizzes
	}
	if c.Now.IsZero() {
		c.Now = time.Now().UTC()
	}
	return c
}

// Generate builds a dataset. The same Config always yields the same data.
func Generate(cfg Config) (Dataset, error) {
	cfg = cfg.withDefaults()
	if cfg.Users < 0 || cfg.Projects < 0 || cfg.Quizzes < 0 {
		return Dataset{}, fmt.Errorf("%w: counts must not be negative", ErrInvalidConfig)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	g := generator{rng: rng, now: cfg.Now}

	var ds Dataset
	ds.Quizzes = make([]model.Quiz, cfg.Quizzes)
	for i := range ds.Quizzes {
		ds.Quizzes[i] = g.quiz(i)
	}
	ds.Users = make([]model.User, cfg.Users)
	for i := range ds.Users {
		ds.Users[i] = g.user(i)
	}
	ds.Projects = make([]model.Project, cfg.Projects)
	for i := range ds.Projects {
		ds.Projects[i] = g.project(i)
	}
	g.claim(&ds)
	g.attempt(&ds)
	return ds, nil
}

// Load writes ds into the stores using up to workers parallel writers.
func Load(ctx context.Context, users repository.UserStore, refs repository.ReferenceStore, ds Dataset, workers int) (Stats, error) {
	start := time.Now()
	if workers <= 0 {
		workers = defaultWorkers
	}
	log := logger.Get().Named("seed")
	log.Info(ctx, "loading synthetic dataset",
		logger.Int("users", len(ds.Users)),
		logger.Int("projects", len(ds.Projects)),
		logger.Int("quizzes", len(ds.Quizzes)),
	)

	for _, p := range ds.Projects {
		if err := refs.SaveProject(ctx, p); err != nil {
			return Stats{}, fmt.Errorf("save project %s: %w", p.ID, err)
		}
	}
	for _, q := range ds.Quizzes {
		if err := refs.SaveQuiz(ctx, q); err != nil {
			return Stats{}, fmt.Errorf("save quiz %s: %w", q.ID, err)
		}
	}

	// Users keep their generated order so listing order is reproducible.
	for _, u := range ds.Users {
		if err := users.Save(ctx, model.User{ID: u.ID}); err != nil {
			return Stats{}, fmt.Errorf("reserve user %s: %w", u.ID, err)
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, u := range ds.Users {
		u := u
		g.Go(func() error {
			if err := users.Save(gctx, u); err != nil {
				return fmt.Errorf("save user %s: %w", u.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	st := Stats{
		Users:    len(ds.Users),
		Projects: len(ds.Projects),
		Quizzes:  len(ds.Quizzes),
		Duration: time.Since(start),
	}
	for i := range ds.Users {
		if ds.Users[i].Eligible() {
			st.Eligible++
		}
	}
	log.Info(ctx, "dataset loaded",
		logger.Int("eligible", st.Eligible),
		logger.Duration("took", st.Duration),
	)
	return st, nil
}

type generator struct {
	rng *rand.Rand
	now time.Time
}

var (
	firstNames = []string{"Amina", "Lucas", "Chloe", "Yanis", "Ines", "Hugo", "Lea", "Adam", "Sofia", "Noah", "Jade", "Malik"}
	lastNames  = []string{"Martin", "Bernard", "Diallo", "Nguyen", "Moreau", "Haddad", "Laurent", "Petit", "Garcia", "Traore"}
	topics     = []string{"Go", "SQL", "Docker", "Kubernetes", "React", "Networking", "Security", "Python", "Linux", "Git"}
)

func (g *generator) id() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		// rand.Rand never fails to read.
		panic(err)
	}
	return id.String()
}

func (g *generator) pick(list []string) string { return list[g.rng.Intn(len(list))] }

// past returns a time within the history window before now.
func (g *generator) past() time.Time {
	return g.now.Add(-time.Duration(g.rng.Int63n(int64(historyDays * 24 * time.Hour))))
}

func (g *generator) user(i int) model.User {
	first, last := g.pick(firstNames), g.pick(lastNames)
	u := model.User{
		ID:        g.id(),
		FirstName: first,
		LastName:  last,
		Email:     fmt.Sprintf("%s.%s.%d@learnrank.test", strings.ToLower(first), strings.ToLower(last), i),
		Role:      model.RoleUser,
		Approved:  true,
		CreatedAt: g.past(),
	}
	switch {
	case i%adminEvery == adminEvery-1:
		u.Role = model.RoleAdmin
	case i%unapprovedEvery == unapprovedEvery-1:
		u.Approved = false
	}
	// A few learners never filled in their names.
	if g.rng.Intn(20) == 0 {
		u.FirstName, u.LastName = "", ""
	}
	return u
}

func (g *generator) quiz(i int) model.Quiz {
	difficulties := []model.QuizDifficulty{model.QuizEasy, model.QuizMedium, model.QuizHard}
	q := model.Quiz{
		ID:         g.id(),
		Title:      g.pick(topics) + " quiz " + strconv.Itoa(i+1),
		Difficulty: difficulties[g.rng.Intn(len(difficulties))],
	}
	// Zero keeps the platform default.
	if g.rng.Intn(3) > 0 {
		q.PassingScore = 50 + 5*g.rng.Intn(6)
	}
	return q
}

func (g *generator) project(i int) model.Project {
	statuses := []model.ProjectStatus{model.ProjectCompleted, model.ProjectCompleted, model.ProjectInProgress, model.ProjectUpcoming}
	levels := []model.ProjectDifficulty{model.ProjectBeginner, model.ProjectIntermediate, model.ProjectAdvanced}
	return model.Project{
		ID:         g.id(),
		Title:      g.pick(topics) + " project " + strconv.Itoa(i+1),
		Status:     statuses[g.rng.Intn(len(statuses))],
		Difficulty: levels[g.rng.Intn(len(levels))],
	}
}

// claim hands out projects. A project is claimed by at most one user.
func (g *generator) claim(ds *Dataset) {
	if len(ds.Users) == 0 {
		return
	}
	for i := range ds.Projects {
		p := &ds.Projects[i]
		if p.Status == model.ProjectUpcoming || g.rng.Intn(4) == 0 {
			continue
		}
		u := &ds.Users[g.rng.Intn(len(ds.Users))]
		if len(u.TakenProjects) >= maxClaims {
			continue
		}
		at := g.past()
		p.TakenBy = u.ID
		p.TakenAt = &at
		u.TakenProjects = append(u.TakenProjects, p.ID)
	}
}

// attempt fills quiz history and the certificates that passing earns.
func (g *generator) attempt(ds *Dataset) {
	if len(ds.Quizzes) == 0 {
		return
	}
	for i := range ds.Users {
		u := &ds.Users[i]
		n := g.rng.Intn(maxAttempts + 1)
		seen := make(map[string]bool, n)
		for j := 0; j < n; j++ {
			q := ds.Quizzes[g.rng.Intn(len(ds.Quizzes))]
			if seen[q.ID] {
				continue
			}
			seen[q.ID] = true
			score := 20 + g.rng.Intn(81)
			taken := g.past()
			u.QuizAttempts = append(u.QuizAttempts, model.QuizAttempt{QuizID: q.ID, Title: q.Title, Score: score, TakenAt: taken})
			if score >= q.Threshold() && len(u.Certificates) < maxCertificates && g.rng.Intn(3) == 0 {
				u.Certificates = append(u.Certificates, model.Certificate{
					ID:        g.id(),
					QuizID:    q.ID,
					QuizTitle: q.Title,
					Score:     score,
					IssuedAt:  taken,
				})
			}
		}
	}
}

