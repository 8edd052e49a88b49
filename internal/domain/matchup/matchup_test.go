package matchup

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pokerank/internal/domain/model"
)

type slicePopulation []model.Entity

func (p slicePopulation) Count(context.Context) (int, error) { return len(p), nil }

func (p slicePopulation) Nth(_ context.Context, i int) (model.Entity, error) {
	if i < 0 || i >= len(p) {
		return model.Entity{}, model.ErrNotFound
	}
	return p[i], nil
}

func population(n int) slicePopulation {
	out := make(slicePopulation, n)
	for i := range out {
		out[i] = model.Entity{ID: int64(i + 1), PokedexNumber: i + 1, Rating: model.DefaultRating}
	}
	return out
}

func TestSelector(t *testing.T) {
	Convey("Given a seeded selector", t, func() {
		ctx := context.Background()
		sel := New(WithSeed(1, 2))

		Convey("When the population is too small", func() {
			_, err0 := sel.Select(ctx, population(0))
			_, err1 := sel.Select(ctx, population(1))

			Convey("Then it reports insufficient data", func() {
				So(errors.Is(err0, model.ErrInsufficientData), ShouldBeTrue)
				So(errors.Is(err1, model.ErrInsufficientData), ShouldBeTrue)
			})
		})

		Convey("When the population has exactly two entities", func() {
			m, err := sel.Select(ctx, population(2))

			Convey("Then both are returned", func() {
				So(err, ShouldBeNil)
				So(m.EntityA.ID+m.EntityB.ID, ShouldEqual, 3)
			})
		})

		Convey("When drawing many pairs from five entities", func() {
			const draws = 20000
			counts := map[[2]int64]int{}
			for k := 0; k < draws; k++ {
				m, err := sel.Select(ctx, population(5))
				So(err, ShouldBeNil)
				So(m.EntityA.ID, ShouldNotEqual, m.EntityB.ID)
				a, b := m.EntityA.ID, m.EntityB.ID
				if a > b {
					a, b = b, a
				}
				counts[[2]int64{a, b}]++
			}

			Convey("Then every unordered pair shows up about equally often", func() {
				So(len(counts), ShouldEqual, 10)
				for _, c := range counts {
					So(c, ShouldBeBetween, 1700, 2300)
				}
			})
		})

		Convey("When the same seed is reused", func() {
			other := New(WithSeed(1, 2))
			i1, j1, _ := sel.Indices(100)
			i2, j2, _ := other.Indices(100)

			Convey("Then the draws repeat", func() {
				So(i1, ShouldEqual, i2)
				So(j1, ShouldEqual, j2)
			})
		})
	})
}
