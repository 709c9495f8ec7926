package service_test

import (
	"context"
	"errors"
	"testing"

	repository "github.com/okian/learnrank/internal/adapters/repository"
	service "github.com/okian/learnrank/internal/app"
	"github.com/okian/learnrank/internal/domain/badges"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func adminIDs(list types.AdminUsers) []string {
	out := make([]string, len(list.Users))
	for i, u := range list.Users {
		out[i] = u.ID
	}
	return out
}

func TestService_UserStanding(t *testing.T) {
	Convey("Given a started service over the fixture", t, func() {
		svc := started(fixture())
		defer svc.Stop()
		ctx := context.Background()

		Convey("When the user is unknown", func() {
			_, err := svc.UserStanding(ctx, "ghost")

			Convey("Then it reports not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When nothing was computed yet", func() {
			st, err := svc.UserStanding(ctx, "carol")

			Convey("Then the standing is empty but well formed", func() {
				So(err, ShouldBeNil)
				So(st.Name, ShouldEqual, "User")
				So(st.Badges, ShouldNotBeNil)
				So(st.Badges, ShouldBeEmpty)
				So(st.LeaderboardStats.GlobalRank, ShouldBeNil)
			})
		})

		Convey("When a recompute and a leaderboard ran", func() {
			_, err := svc.Recompute(ctx)
			So(err, ShouldBeNil)
			_, err = svc.Leaderboard(ctx, service.Query{})
			So(err, ShouldBeNil)
			st, err := svc.UserStanding(ctx, "alice")

			Convey("Then the persisted values are returned", func() {
				So(err, ShouldBeNil)
				So(st.Points, ShouldEqual, 180)
				So(st.Badges, ShouldResemble, []string{"Project-Beginner"})
				So(*st.LeaderboardStats.GlobalRank, ShouldEqual, 1)
				So(st.Email, ShouldEqual, "alice@example.com")
			})
		})
	})
}

func TestService_AdminUsers(t *testing.T) {
	Convey("Given a started service after a recompute", t, func() {
		svc := started(fixture())
		defer svc.Stop()
		ctx := context.Background()
		_, err := svc.Recompute(ctx)
		So(err, ShouldBeNil)

		Convey("When listing without a search", func() {
			list, err := svc.AdminUsers(ctx, "")

			Convey("Then eligible learners are sorted by stored points", func() {
				So(err, ShouldBeNil)
				So(list.Total, ShouldEqual, 3)
				So(adminIDs(list), ShouldResemble, []string{"alice", "carol", "bob"})
				So(list.Users[1].Rank, ShouldEqual, 2)
				So(list.Users[1].Name, ShouldEqual, "carol@example.com")
				So(list.Users[0].ProjectCount, ShouldEqual, 1)
				So(list.Users[0].QuizCount, ShouldEqual, 1)
				So(list.Users[1].CertificateCount, ShouldEqual, 1)
				So(list.Users[0].ManualBadges, ShouldNotBeNil)
			})
		})

		Convey("When searching by part of a last name in another case", func() {
			list, err := svc.AdminUsers(ctx, "DUR")

			Convey("Then only the match is listed and ranked first", func() {
				So(err, ShouldBeNil)
				So(adminIDs(list), ShouldResemble, []string{"bob"})
				So(list.Users[0].Rank, ShouldEqual, 1)
				So(list.Total, ShouldEqual, 1)
			})
		})

		Convey("When searching by email domain", func() {
			list, err := svc.AdminUsers(ctx, "example.com")

			Convey("Then every eligible learner matches", func() {
				So(err, ShouldBeNil)
				So(list.Total, ShouldEqual, 3)
			})
		})

		Convey("When nothing matches", func() {
			list, err := svc.AdminUsers(ctx, "zzz")

			Convey("Then the list is empty", func() {
				So(err, ShouldBeNil)
				So(list.Users, ShouldBeEmpty)
				So(list.Total, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Badges(t *testing.T) {
	Convey("Given a started service after a recompute", t, func() {
		svc := started(fixture())
		defer svc.Stop()
		ctx := context.Background()
		_, err := svc.Recompute(ctx)
		So(err, ShouldBeNil)

		Convey("When a custom badge is granted", func() {
			holder, err := svc.AddBadge(ctx, "alice", "Mentor")

			Convey("Then the holder carries it", func() {
				So(err, ShouldBeNil)
				So(holder.ID, ShouldEqual, "alice")
				So(holder.Name, ShouldEqual, "Alice Martin")
				So(holder.Points, ShouldEqual, 180)
				So(holder.Badges, ShouldResemble, []string{"Project-Beginner", "Mentor"})
			})

			Convey("Then granting it again is rejected", func() {
				_, err := svc.AddBadge(ctx, "alice", "Mentor")
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})

			Convey("Then the catalog lists it as custom", func() {
				cat, err := svc.BadgeCatalog(ctx)
				So(err, ShouldBeNil)
				So(cat.StandardBadges, ShouldResemble, badges.Standard())
				So(cat.CustomBadges, ShouldResemble, []string{"Mentor"})
				So(cat.Badges, ShouldHaveLength, len(badges.Standard())+1)
				So(cat.Badges[len(cat.Badges)-1], ShouldEqual, "Mentor")
			})

			Convey("Then it can be revoked", func() {
				holder, err := svc.RemoveBadge(ctx, "alice", "Mentor")
				So(err, ShouldBeNil)
				So(holder.Badges, ShouldResemble, []string{"Project-Beginner"})
			})
		})

		Convey("When an automatic badge is revoked", func() {
			_, err := svc.RemoveBadge(ctx, "alice", "Project-Beginner")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the user is unknown", func() {
			_, err := svc.AddBadge(ctx, "ghost", "Mentor")

			Convey("Then it reports not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a blank badge is granted", func() {
			_, err := svc.AddBadge(ctx, "alice", "  ")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When a mutation request is applied", func() {
			holder, err := svc.MutateBadge(ctx, types.BadgeMutation{UserID: "bob", Action: types.BadgeAdd, Badge: "Helper"})
			So(err, ShouldBeNil)
			So(holder.Badges, ShouldResemble, []string{"Helper"})

			_, err = svc.MutateBadge(ctx, types.BadgeMutation{UserID: "bob", Action: "toggle", Badge: "Helper"})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			holder, err = svc.MutateBadge(ctx, types.BadgeMutation{UserID: "bob", Action: types.BadgeRemove, Badge: "Helper"})
			So(err, ShouldBeNil)
			So(holder.Badges, ShouldBeEmpty)
		})

		Convey("When no custom badge exists", func() {
			cat, err := svc.BadgeCatalog(ctx)

			Convey("Then the catalog is the standard vocabulary", func() {
				So(err, ShouldBeNil)
				So(cat.Badges, ShouldResemble, badges.Standard())
				So(cat.CustomBadges, ShouldNotBeNil)
				So(cat.CustomBadges, ShouldBeEmpty)
			})
		})
	})
}
