package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func intp(v int) *int { return &v }

func TestEntitySeed(t *testing.T) {
	convey.Convey("Given an entity seed", t, func() {
		seed := model.EntitySeed{
			PokedexNumber: 4,
			Name:          "Charmander",
			ImageURL:      "https://img/4.png",
			Types:         []types.Category{"fire", "Shadow"},
		}

		convey.Convey("When building a new entity", func() {
			e := seed.NewEntity()

			convey.Convey("Then defaults apply and categories are sanitized", func() {
				convey.So(e.Rating, convey.ShouldEqual, model.DefaultRating)
				convey.So(e.Wins, convey.ShouldEqual, 0)
				convey.So(e.Losses, convey.ShouldEqual, 0)
				convey.So(e.Types, convey.ShouldResemble, []types.Category{types.Fire})
			})
		})

		convey.Convey("When applying onto an existing entity without overrides", func() {
			existing := model.Entity{ID: 9, PokedexNumber: 4, Name: "Pokémon #4", Rating: 1620, Wins: 7, Losses: 2}
			e := seed.Apply(existing)

			convey.Convey("Then id, rating and tallies are preserved", func() {
				convey.So(e.ID, convey.ShouldEqual, 9)
				convey.So(e.Name, convey.ShouldEqual, "Charmander")
				convey.So(e.Rating, convey.ShouldEqual, 1620)
				convey.So(e.Wins, convey.ShouldEqual, 7)
				convey.So(e.Losses, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When overrides are supplied", func() {
			seed.Rating = intp(1500)
			seed.Wins = intp(0)
			e := seed.Apply(model.Entity{ID: 9, Rating: 1700, Wins: 5, Losses: 5})

			convey.Convey("Then only the supplied fields change", func() {
				convey.So(e.Rating, convey.ShouldEqual, 1500)
				convey.So(e.Wins, convey.ShouldEqual, 0)
				convey.So(e.Losses, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When validating", func() {
			convey.So(seed.Validate(), convey.ShouldBeNil)

			bad := seed
			bad.PokedexNumber = 0
			convey.So(errors.Is(bad.Validate(), model.ErrInvalidArgument), convey.ShouldBeTrue)

			bad = seed
			bad.Name = "  "
			convey.So(errors.Is(bad.Validate(), model.ErrInvalidArgument), convey.ShouldBeTrue)

			bad = seed
			bad.Losses = intp(-1)
			convey.So(errors.Is(bad.Validate(), model.ErrInvalidArgument), convey.ShouldBeTrue)
		})
	})
}

func TestEntityClone(t *testing.T) {
	convey.Convey("Given an entity", t, func() {
		e := model.Entity{ID: 1, Types: []types.Category{types.Grass, types.Poison}}

		convey.Convey("When cloned and the clone is mutated", func() {
			c := e.Clone()
			c.Types[0] = types.Fire

			convey.Convey("Then the original is untouched", func() {
				convey.So(e.Types[0], convey.ShouldEqual, types.Grass)
				convey.So(e.HasType(types.Poison), convey.ShouldBeTrue)
				convey.So(e.HasType(types.Fire), convey.ShouldBeFalse)
			})
		})
	})
}

func TestVoteInput(t *testing.T) {
	convey.Convey("Given vote intents", t, func() {
		convey.So(model.VoteInput{WinnerID: 1, LoserID: 2}.Validate(), convey.ShouldBeNil)
		convey.So(errors.Is(model.VoteInput{WinnerID: 3, LoserID: 3}.Validate(), model.ErrInvalidArgument), convey.ShouldBeTrue)
		convey.So(errors.Is(model.VoteInput{WinnerID: 0, LoserID: 3}.Validate(), model.ErrInvalidArgument), convey.ShouldBeTrue)
	})
}

func TestRankedEntityJSON(t *testing.T) {
	convey.Convey("Given a ranked entity", t, func() {
		r := model.RankedEntity{Entity: model.Entity{ID: 1, Name: "Bulbasaur", Rating: 1516}, Rank: 1}

		convey.Convey("When encoded", func() {
			raw, err := json.Marshal(r)
			convey.So(err, convey.ShouldBeNil)

			var m map[string]any
			convey.So(json.Unmarshal(raw, &m), convey.ShouldBeNil)

			convey.Convey("Then entity fields and rank sit side by side", func() {
				convey.So(m["rank"], convey.ShouldEqual, 1.0)
				convey.So(m["name"], convey.ShouldEqual, "Bulbasaur")
				convey.So(m["rating"], convey.ShouldEqual, 1516.0)
			})
		})
	})
}
