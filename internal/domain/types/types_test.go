package types_test

import (
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lasertrack/internal/domain/model"
	types "github.com/okian/lasertrack/internal/domain/types"
)

func TestPredictRequest(t *testing.T) {
	Convey("Given a predict request body", t, func() {
		body := `{"mode":"ball","teams":[["a","b"],["c"]]}`

		Convey("When decoding it", func() {
			var req types.PredictRequest
			So(json.Unmarshal([]byte(body), &req), ShouldBeNil)

			Convey("Then the mode name is parsed and the request is valid", func() {
				So(req.Mode, ShouldEqual, model.ModeBall)
				So(req.Teams, ShouldHaveLength, 2)
				So(req.Validate(), ShouldBeNil)
			})
		})

		Convey("When a team is empty or an account repeats", func() {
			empty := types.PredictRequest{Mode: model.ModeBall, Teams: [][]string{{"a"}, {}}}
			dup := types.PredictRequest{Mode: model.ModeBall, Teams: [][]string{{"a"}, {"a"}}}
			single := types.PredictRequest{Mode: model.ModeBall, Teams: [][]string{{"a"}}}

			Convey("Then validation fails", func() {
				So(errors.Is(empty.Validate(), types.ErrInvalid), ShouldBeTrue)
				So(errors.Is(dup.Validate(), types.ErrInvalid), ShouldBeTrue)
				So(errors.Is(single.Validate(), types.ErrInvalid), ShouldBeTrue)
			})
		})

		Convey("When the mode is unknown", func() {
			var req types.PredictRequest
			err := json.Unmarshal([]byte(`{"mode":"darts","teams":[["a"],["b"]]}`), &req)

			Convey("Then decoding fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestBalanceRequest(t *testing.T) {
	Convey("Given balance requests", t, func() {
		ok := types.BalanceRequest{Mode: model.ModeElimination, Accounts: []string{"a", "b", "c", "d"}, Teams: 2}

		Convey("Then a well-formed request passes", func() {
			So(ok.Validate(), ShouldBeNil)
		})

		Convey("Then bad team counts and rosters fail", func() {
			tooMany := ok
			tooMany.Teams = 5
			short := ok
			short.Accounts = []string{"a"}
			dup := ok
			dup.Accounts = []string{"a", "a", "b", "c"}
			noMode := ok
			noMode.Mode = model.ModeUnknown

			for _, r := range []types.BalanceRequest{tooMany, short, dup, noMode} {
				So(errors.Is(r.Validate(), types.ErrInvalid), ShouldBeTrue)
			}
		})
	})
}

func TestPredictionJSON(t *testing.T) {
	Convey("Given a prediction", t, func() {
		p := types.Prediction{Mode: model.ModeElimination, Teams: [][]string{{"a"}, {"b"}}, Probabilities: []float64{0.6, 0.4}}

		Convey("When encoding it", func() {
			out, err := json.Marshal(p)
			So(err, ShouldBeNil)

			Convey("Then the mode is written by name", func() {
				So(string(out), ShouldContainSubstring, `"mode":"elimination"`)
			})
		})
	})
}
