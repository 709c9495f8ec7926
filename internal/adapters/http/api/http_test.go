package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/learnrank/internal/adapters/http/api"
	repository "github.com/okian/learnrank/internal/adapters/repository"
	service "github.com/okian/learnrank/internal/app"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/types"
	"github.com/okian/learnrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

// brokenDeps fails every call with err.
type brokenDeps struct{ err error }

func (b brokenDeps) Leaderboard(context.Context, service.Query) (types.Leaderboard, error) {
	return types.Leaderboard{}, b.err
}

func (b brokenDeps) UserStanding(context.Context, string) (types.UserStanding, error) {
	return types.UserStanding{}, b.err
}

func (b brokenDeps) Recompute(context.Context) (types.RecomputeResult, error) {
	return types.RecomputeResult{}, b.err
}

func (b brokenDeps) RecomputeStatus(context.Context) (types.RecomputeStatus, error) {
	return types.RecomputeStatus{}, b.err
}

func (b brokenDeps) AdminUsers(context.Context, string) (types.AdminUsers, error) {
	return types.AdminUsers{}, b.err
}

func (b brokenDeps) MutateBadge(context.Context, types.BadgeMutation) (types.BadgeHolder, error) {
	return types.BadgeHolder{}, b.err
}

func (b brokenDeps) BadgeCatalog(context.Context) (types.BadgeCatalog, error) {
	return types.BadgeCatalog{}, b.err
}

func member(id, first string, certificates int) model.User {
	u := model.User{ID: id, FirstName: first, Email: id + "@example.com", Role: model.RoleUser, Approved: true}
	for i := 0; i < certificates; i++ {
		u.Certificates = append(u.Certificates, model.Certificate{ID: id + "-cert"})
	}
	return u
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}).Register(context.Background(), mux)
	return mux
}

func newService() *service.Service {
	store := repository.NewMemoryStore(repository.WithUsers(
		member("u1", "Ana", 1),
		member("u2", "Ben", 2),
	))
	svc := service.New(service.WithStore(store))
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc
}

func do(mux http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	if role != "" {
		req.Header.Set(api.HeaderUserRole, role)
		req.Header.Set(api.HeaderUserID, "u1")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		svc := newService()
		defer svc.Stop()
		mux := newMux(svc)

		Convey("Then the health endpoint exposes metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint returns provider stats", func() {
			w := do(mux, http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then every response carries a request id", func() {
			w := do(mux, http.MethodGet, "/stats", "", "")
			So(w.Header().Get(api.HeaderRequestID), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			req.Header.Set(api.HeaderRequestID, "abc-123")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Header().Get(api.HeaderRequestID), ShouldEqual, "abc-123")
		})

		Convey("Then a wrong method is rejected with 405", func() {
			w := do(mux, http.MethodDelete, "/api/leaderboard", "", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			body := decode(w)
			So(body["success"], ShouldEqual, false)
			So(body["code"], ShouldEqual, "method_not_allowed")
		})

		Convey("Then registering on a nil mux panics", func() {
			So(func() {
				api.NewServer(svc, &mockStatsProvider{}).Register(context.Background(), nil)
			}, ShouldPanic)
		})
	})
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given a leaderboard over two learners", t, func() {
		svc := newService()
		defer svc.Stop()
		mux := newMux(svc)

		Convey("When the default leaderboard is requested by u1", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard", "user", "")

			Convey("Then it ranks by points and echoes the caller", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Success         bool          `json:"success"`
					Leaderboard     []types.Entry `json:"leaderboard"`
					CurrentUserRank *types.Entry  `json:"currentUserRank"`
					Period          string        `json:"period"`
					Category        string        `json:"category"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Success, ShouldBeTrue)
				So(resp.Period, ShouldEqual, "all")
				So(resp.Category, ShouldEqual, "all")
				So(resp.Leaderboard, ShouldHaveLength, 2)
				So(resp.Leaderboard[0].UserID, ShouldEqual, "u2")
				So(resp.Leaderboard[0].TotalPoints, ShouldEqual, 300)
				So(resp.CurrentUserRank, ShouldNotBeNil)
				So(resp.CurrentUserRank.Rank, ShouldEqual, 2)
			})

			Convey("Then avatars are explicit nulls", func() {
				So(w.Body.String(), ShouldContainSubstring, `"avatar":null`)
			})
		})

		Convey("When the userId query names another learner", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard?period=all&category=formations&userId=u2", "user", "")

			Convey("Then that learner is echoed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["category"], ShouldEqual, "formations")
				current := body["currentUserRank"].(map[string]interface{})
				So(current["userId"], ShouldEqual, "u2")
			})
		})

		Convey("When the period is unknown", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard?period=yearly", "", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decode(w)
				So(body["code"], ShouldEqual, "bad_request")
				So(body["error"], ShouldContainSubstring, "yearly")
			})
		})

		Convey("When the category is unknown", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard?category=music", "", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a user standing is requested", func() {
			do(mux, http.MethodGet, "/api/leaderboard", "", "")
			w := do(mux, http.MethodGet, "/api/leaderboard/user/u1", "", "")

			Convey("Then the persisted stats are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Success bool               `json:"success"`
					User    types.UserStanding `json:"user"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Success, ShouldBeTrue)
				So(resp.User.Name, ShouldEqual, "Ana")
				So(*resp.User.LeaderboardStats.GlobalRank, ShouldEqual, 2)
				So(resp.User.Badges, ShouldNotBeNil)
			})
		})

		Convey("When the standing of an unknown user is requested", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard/user/ghost", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("When the user id is missing", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard/user/", "", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given a backend that fails", t, func() {
		mux := newMux(brokenDeps{err: errors.New("store offline")})

		Convey("Then the leaderboard reports an internal error", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard", "", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			body := decode(w)
			So(body["success"], ShouldEqual, false)
			So(body["code"], ShouldEqual, "internal_error")
			So(body["error"], ShouldEqual, "store offline")
		})
	})

	Convey("Given a service that is not started", t, func() {
		mux := newMux(brokenDeps{err: service.ErrNotStarted})

		Convey("Then the leaderboard is unavailable", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard", "", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestPointsHandler(t *testing.T) {
	Convey("Given the update-points endpoint", t, func() {
		svc := newService()
		defer svc.Stop()
		mux := newMux(svc)

		Convey("When the status is requested", func() {
			w := do(mux, http.MethodGet, "/api/leaderboard/update-points", "", "")

			Convey("Then it reports that points are missing", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["success"], ShouldEqual, true)
				So(body["totalUsers"], ShouldEqual, 2.0)
				So(body["usersWithPoints"], ShouldEqual, 0.0)
				So(body["needsUpdate"], ShouldEqual, true)
			})
		})

		Convey("When a learner asks for a recompute", func() {
			w := do(mux, http.MethodPost, "/api/leaderboard/update-points", "user", "")

			Convey("Then it is forbidden", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(decode(w)["code"], ShouldEqual, "forbidden")
			})
		})

		Convey("When an administrator asks for a recompute", func() {
			w := do(mux, http.MethodPost, "/api/leaderboard/update-points", "admin", "")

			Convey("Then every learner is updated", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Success      bool                   `json:"success"`
					Message      string                 `json:"message"`
					UpdatedCount int                    `json:"updatedCount"`
					Results      []types.RecomputeEntry `json:"results"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Success, ShouldBeTrue)
				So(resp.UpdatedCount, ShouldEqual, 2)
				So(resp.Message, ShouldEqual, "Points updated for 2 users")
				So(resp.Results[0].Points, ShouldEqual, 150)

				status := decode(do(mux, http.MethodGet, "/api/leaderboard/update-points", "", ""))
				So(status["needsUpdate"], ShouldEqual, false)
			})
		})

		Convey("When the recompute runs out of time", func() {
			timeout := newMux(brokenDeps{err: service.ErrRecomputeTime})
			w := do(timeout, http.MethodPost, "/api/leaderboard/update-points", "admin", "")
			So(w.Code, ShouldEqual, http.StatusGatewayTimeout)
		})
	})
}

func TestAdminHandler(t *testing.T) {
	Convey("Given the admin endpoints", t, func() {
		svc := newService()
		defer svc.Stop()
		mux := newMux(svc)
		_, err := svc.Recompute(context.Background())
		So(err, ShouldBeNil)

		Convey("Then learners cannot use them", func() {
			for _, path := range []string{"/api/admin/leaderboard/users", "/api/admin/leaderboard/manage-badges"} {
				w := do(mux, http.MethodGet, path, "user", "")
				So(w.Code, ShouldEqual, http.StatusForbidden)
				w = do(mux, http.MethodGet, path, "", "")
				So(w.Code, ShouldEqual, http.StatusForbidden)
			}
		})

		Convey("When an administrator lists users", func() {
			w := do(mux, http.MethodGet, "/api/admin/leaderboard/users", "admin", "")

			Convey("Then they are ranked by stored points", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Success bool              `json:"success"`
					Users   []types.AdminUser `json:"users"`
					Total   int               `json:"total"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Total, ShouldEqual, 2)
				So(resp.Users[0].ID, ShouldEqual, "u2")
				So(resp.Users[0].Rank, ShouldEqual, 1)
				So(resp.Users[0].CertificateCount, ShouldEqual, 2)
			})
		})

		Convey("When an administrator searches", func() {
			w := do(mux, http.MethodGet, "/api/admin/leaderboard/users?search=ana", "admin", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["total"], ShouldEqual, 1.0)
		})

		Convey("When an administrator grants a badge", func() {
			w := do(mux, http.MethodPost, "/api/admin/leaderboard/manage-badges", "admin",
				`{"userId":"u1","action":"add","badge":"Mentor"}`)

			Convey("Then the user is returned with the badge", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Success bool              `json:"success"`
					Message string            `json:"message"`
					User    types.BadgeHolder `json:"user"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Success, ShouldBeTrue)
				So(resp.Message, ShouldEqual, "Badge added")
				So(resp.User.Badges, ShouldContain, "Mentor")
			})

			Convey("Then granting it twice is a bad request", func() {
				again := do(mux, http.MethodPost, "/api/admin/leaderboard/manage-badges", "admin",
					`{"userId":"u1","action":"add","badge":"Mentor"}`)
				So(again.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then the catalog lists it as custom", func() {
				cat := do(mux, http.MethodGet, "/api/admin/leaderboard/manage-badges", "admin", "")
				So(cat.Code, ShouldEqual, http.StatusOK)
				var resp types.BadgeCatalog
				So(json.Unmarshal(cat.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.CustomBadges, ShouldResemble, []string{"Mentor"})
				So(resp.StandardBadges, ShouldHaveLength, 9)
			})

			Convey("Then it can be removed", func() {
				rm := do(mux, http.MethodPost, "/api/admin/leaderboard/manage-badges", "admin",
					`{"userId":"u1","action":"remove","badge":"Mentor"}`)
				So(rm.Code, ShouldEqual, http.StatusOK)
				So(decode(rm)["message"], ShouldEqual, "Badge removed")
			})
		})

		Convey("When the badge body is invalid", func() {
			cases := map[string]string{
				`{"userId":"u1","action":"toggle","badge":"Mentor"}`: "action",
				`{"action":"add","badge":"Mentor"}`:                  "userId",
				`{"userId":"u1","action":"add"}`:                     "badge",
				`not json`:                                           "JSON",
			}
			for body, field := range cases {
				w := do(mux, http.MethodPost, "/api/admin/leaderboard/manage-badges", "admin", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldContainSubstring, field)
			}
		})

		Convey("When the badge target does not exist", func() {
			w := do(mux, http.MethodPost, "/api/admin/leaderboard/manage-badges", "admin",
				`{"userId":"ghost","action":"add","badge":"Mentor"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given API errors", t, func() {
		Convey("Then kinds and causes are both visible to errors.Is", func() {
			cause := errors.New("boom")
			err := &api.Error{Op: "api.op", Kind: api.ErrBadRequest, Err: cause}
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then Wrap keeps nil errors nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(errors.Is(api.Wrap("api.op", repository.ErrNotFound), repository.ErrNotFound), ShouldBeTrue)
			So(api.NewKind("api.op", api.ErrForbidden).Error(), ShouldEqual, "api.op: administrator role required")
		})
	})
}
