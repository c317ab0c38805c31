package types_test

import (
	"encoding/json"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	types "github.com/sweeply/tidyboard/internal/domain/types"
)

func TestEntryWireFormat(t *testing.T) {
	Convey("Given a populated leaderboard entry", t, func() {
		e := types.Entry{
			Rank:     3,
			DeviceID: "device-json",
			Reports:  5,
			Points:   120.0,
		}

		Convey("When marshaled to JSON", func() {
			data, err := json.Marshal(e)
			So(err, ShouldBeNil)

			Convey("Then the wire names are the snake_case ones", func() {
				So(string(data), ShouldContainSubstring, `"rank":3`)
				So(string(data), ShouldContainSubstring, `"device_id":"device-json"`)
				So(string(data), ShouldContainSubstring, `"reports":5`)
				So(string(data), ShouldContainSubstring, `"points":120`)
			})

			Convey("And decoding the bytes restores the entry", func() {
				var got types.Entry
				So(json.Unmarshal(data, &got), ShouldBeNil)
				So(got, ShouldResemble, e)
			})
		})

		Convey("When left as the zero value", func() {
			var zero types.Entry

			Convey("Then every field reads as empty", func() {
				So(zero.Rank, ShouldEqual, 0)
				So(zero.DeviceID, ShouldBeEmpty)
				So(zero.Reports, ShouldEqual, 0)
				So(zero.Points, ShouldEqual, 0.0)
			})
		})
	})
}

func TestEntryBoardShape(t *testing.T) {
	Convey("Given a board slice as the store hands it back", t, func() {
		board := []types.Entry{
			{Rank: 1, DeviceID: "device-1", Reports: 12, Points: 95.0},
			{Rank: 1, DeviceID: "device-2", Reports: 6, Points: 95.0},
			{Rank: 2, DeviceID: "device-3", Reports: 11, Points: 90.0},
			{Rank: 3, DeviceID: "device-4", Reports: 4, Points: 85.5},
		}

		Convey("Then points never rise going down the list", func() {
			for i := range board[1:] {
				So(board[i+1].Points, ShouldBeLessThanOrEqualTo, board[i].Points)
			}
		})

		Convey("And tied devices share a rank while staying distinct", func() {
			So(board[0].Points, ShouldEqual, board[1].Points)
			So(board[0].Rank, ShouldEqual, board[1].Rank)
			So(board[0].DeviceID, ShouldNotEqual, board[1].DeviceID)
		})

		Convey("And ranks are dense rather than positional", func() {
			So(board[2].Rank, ShouldEqual, 2)
			So(board[3].Rank, ShouldEqual, 3)
		})

		Convey("And report counts do not decide the order", func() {
			So(board[1].Reports, ShouldBeLessThan, board[2].Reports)
		})
	})
}

func TestEntryOddValues(t *testing.T) {
	Convey("Given entries at the edges of the value space", t, func() {
		Convey("A kilobyte device id survives intact", func() {
			id := "device-" + strings.Repeat("x", 1024)
			e := types.Entry{Rank: 1, DeviceID: id, Reports: 1, Points: 50.0}

			So(len(e.DeviceID), ShouldEqual, len("device-")+1024)
		})

		Convey("A non-ASCII device id is preserved", func() {
			e := types.Entry{Rank: 1, DeviceID: "device-áéíóúñ-🧹", Reports: 3, Points: 75.5}

			So(e.DeviceID, ShouldContainSubstring, "áéíóúñ")
			So(e.DeviceID, ShouldContainSubstring, "🧹")
		})

		Convey("Huge ranks and totals fit the field types", func() {
			e := types.Entry{Rank: 1 << 30, DeviceID: "device-extreme", Reports: 1 << 30, Points: 1e308}

			So(e.Rank, ShouldEqual, 1<<30)
			So(e.Reports, ShouldEqual, 1<<30)
			So(e.Points, ShouldEqual, 1e308)
		})

		Convey("Zero points beside positive reports is a legal entry", func() {
			e := types.Entry{Rank: 9, DeviceID: "device-zero", Reports: 2, Points: 0.0}

			So(e.Reports, ShouldEqual, 2)
			So(e.Points, ShouldEqual, 0.0)
		})
	})
}

func TestScope(t *testing.T) {
	Convey("Given the Scope type", t, func() {
		Convey("When checking the known scopes", func() {
			Convey("Then city and area should be valid", func() {
				So(types.ScopeCity.Valid(), ShouldBeTrue)
				So(types.ScopeArea.Valid(), ShouldBeTrue)
			})

			Convey("And their string values should match the API query values", func() {
				So(string(types.ScopeCity), ShouldEqual, "city")
				So(string(types.ScopeArea), ShouldEqual, "area")
			})
		})

		Convey("When checking unknown scopes", func() {
			Convey("Then the empty scope should be invalid", func() {
				So(types.Scope("").Valid(), ShouldBeFalse)
			})

			Convey("And arbitrary values should be invalid", func() {
				So(types.Scope("town").Valid(), ShouldBeFalse)
				So(types.Scope("global").Valid(), ShouldBeFalse)
			})

			Convey("And scope matching should be case sensitive", func() {
				So(types.Scope("City").Valid(), ShouldBeFalse)
				So(types.Scope("AREA").Valid(), ShouldBeFalse)
			})
		})
	})
}
