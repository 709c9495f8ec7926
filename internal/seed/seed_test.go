package seed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	repository "github.com/okian/learnrank/internal/adapters/repository"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/seed"
	"github.com/okian/learnrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	Convey("Given a seed configuration", t, func() {
		cfg := seed.Config{Users: 60, Seed: 42, Now: now}

		Convey("When generating twice with the same seed", func() {
			a, err := seed.Generate(cfg)
			So(err, ShouldBeNil)
			b, err := seed.Generate(cfg)
			So(err, ShouldBeNil)

			Convey("Then the datasets are identical", func() {
				So(a, ShouldResemble, b)
			})

			Convey("Then the default catalogue sizes apply", func() {
				So(a.Users, ShouldHaveLength, 60)
				So(a.Projects, ShouldHaveLength, 30)
				So(a.Quizzes, ShouldHaveLength, 20)
			})

			Convey("Then ids are unique", func() {
				seen := map[string]bool{}
				for _, u := range a.Users {
					So(seen[u.ID], ShouldBeFalse)
					seen[u.ID] = true
				}
				for _, p := range a.Projects {
					So(seen[p.ID], ShouldBeFalse)
					seen[p.ID] = true
				}
			})

			Convey("Then some accounts are not eligible", func() {
				var admins, pending int
				for _, u := range a.Users {
					if u.Role == model.RoleAdmin {
						admins++
					}
					if !u.Approved {
						pending++
					}
				}
				So(admins, ShouldEqual, 2)
				So(pending, ShouldBeGreaterThan, 0)
			})

			Convey("Then every claimed project points back at its owner", func() {
				owners := map[string]string{}
				for _, u := range a.Users {
					for _, id := range u.TakenProjects {
						owners[id] = u.ID
					}
				}
				for _, p := range a.Projects {
					if p.TakenBy != "" {
						So(owners[p.ID], ShouldEqual, p.TakenBy)
						So(p.TakenAt, ShouldNotBeNil)
						So(p.TakenAt.After(now), ShouldBeFalse)
					}
					So(p.Status == model.ProjectUpcoming && p.TakenBy != "", ShouldBeFalse)
				}
			})

			Convey("Then certificates come from passed attempts", func() {
				for _, u := range a.Users {
					So(len(u.Certificates), ShouldBeLessThanOrEqualTo, 6)
					for _, c := range u.Certificates {
						So(c.QuizID, ShouldNotBeEmpty)
						So(c.IssuedAt.After(now), ShouldBeFalse)
					}
				}
			})
		})

		Convey("When another seed is used", func() {
			a, _ := seed.Generate(cfg)
			cfg.Seed = 7
			b, _ := seed.Generate(cfg)

			Convey("Then the data differs", func() {
				So(a.Users[0].ID, ShouldNotEqual, b.Users[0].ID)
			})
		})

		Convey("When a count is negative", func() {
			_, err := seed.Generate(seed.Config{Users: -1})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, seed.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a generated dataset and an empty store", t, func() {
		ds, err := seed.Generate(seed.Config{Users: 40, Seed: 1, Now: now})
		So(err, ShouldBeNil)
		store := repository.NewMemoryStore()
		ctx := context.Background()

		Convey("When it is loaded", func() {
			st, err := seed.Load(ctx, store, store, ds, 4)
			So(err, ShouldBeNil)

			Convey("Then every record is stored", func() {
				So(st.Users, ShouldEqual, 40)
				projects, _ := store.Projects(ctx)
				So(projects, ShouldHaveLength, len(ds.Projects))
				quizzes, _ := store.Quizzes(ctx)
				So(quizzes, ShouldHaveLength, len(ds.Quizzes))
			})

			Convey("Then the eligible learners keep generation order", func() {
				listed, err := store.ListEligible(ctx)
				So(err, ShouldBeNil)
				So(listed, ShouldHaveLength, st.Eligible)

				var want []string
				for _, u := range ds.Users {
					if u.Eligible() {
						want = append(want, u.ID)
					}
				}
				got := make([]string, len(listed))
				for i, u := range listed {
					got[i] = u.ID
				}
				So(got, ShouldResemble, want)
			})
		})
	})
}
