package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/learnrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLeaderboardJSON(t *testing.T) {
	Convey("Given a leaderboard without a current user", t, func() {
		lb := types.Leaderboard{
			Entries:  []types.Entry{{UserID: "u1", Name: "Ada", Badges: []string{}, Rank: 1}},
			Period:   "all",
			Category: "quiz",
		}

		Convey("When encoded", func() {
			raw, err := json.Marshal(lb)
			So(err, ShouldBeNil)

			var m map[string]any
			So(json.Unmarshal(raw, &m), ShouldBeNil)

			Convey("Then currentUserRank and avatar are explicit nulls", func() {
				So(m, ShouldContainKey, "currentUserRank")
				So(m["currentUserRank"], ShouldBeNil)
				entry := m["leaderboard"].([]any)[0].(map[string]any)
				So(entry, ShouldContainKey, "avatar")
				So(entry["avatar"], ShouldBeNil)
				So(entry["userId"], ShouldEqual, "u1")
			})
		})
	})
}

func TestBadgeMutationJSON(t *testing.T) {
	Convey("Given a badge mutation body", t, func() {
		var m types.BadgeMutation
		err := json.Unmarshal([]byte(`{"userId":"u1","action":"add","badge":"Mentor"}`), &m)

		Convey("Then the fields decode by their wire names", func() {
			So(err, ShouldBeNil)
			So(m, ShouldResemble, types.BadgeMutation{UserID: "u1", Action: types.BadgeAdd, Badge: "Mentor"})
		})
	})
}
