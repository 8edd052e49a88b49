package seed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/okian/pokerank/pkg/logger"
)

type fakeCatalogue struct {
	entries  []model.CatalogueEntry
	listErr  error
	types    map[int][]string
	typeErr  map[int]error
	mu       sync.Mutex
	typeHits []int
}

func (f *fakeCatalogue) Entries(_ context.Context, limit int) ([]model.CatalogueEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeCatalogue) Types(_ context.Context, n int) ([]string, error) {
	f.mu.Lock()
	f.typeHits = append(f.typeHits, n)
	f.mu.Unlock()
	if err := f.typeErr[n]; err != nil {
		return nil, err
	}
	return f.types[n], nil
}

func catalogue(n int) *fakeCatalogue {
	f := &fakeCatalogue{types: map[int][]string{}, typeErr: map[int]error{}}
	for i := 1; i <= n; i++ {
		f.entries = append(f.entries, model.CatalogueEntry{PokedexNumber: i, Name: fmt.Sprintf("mon%d-form", i)})
	}
	return f
}

type memUpserter struct {
	byDex map[int]model.EntitySeed
	fail  int
}

func (m *memUpserter) Upsert(_ context.Context, sd model.EntitySeed) (model.Entity, error) {
	if sd.PokedexNumber == m.fail {
		return model.Entity{}, errors.New("disk full")
	}
	m.byDex[sd.PokedexNumber] = sd
	return sd.NewEntity(), nil
}

func TestDisplayName(t *testing.T) {
	Convey("Given catalogue slugs", t, func() {
		So(DisplayName("bulbasaur"), ShouldEqual, "Bulbasaur")
		So(DisplayName("deoxys-normal"), ShouldEqual, "Deoxys")
		So(DisplayName("mr-mime"), ShouldEqual, "Mr")
		So(DisplayName(" "), ShouldEqual, "")
	})
}

func TestBuild(t *testing.T) {
	Convey("Given a catalogue of 30 entries", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		cat := catalogue(30)
		cat.types[21] = []string{"normal", "flying"}
		cat.types[22] = []string{"normal", "flying"}
		cat.typeErr[23] = errors.New("timeout")
		cat.types[24] = []string{"poison", "shadow", "poison"}

		s := New(cat,
			WithRosterSize(30),
			WithEnrichCount(25),
			WithWorkers(3),
			WithSpriteBaseURL("https://sprites.test/"),
		)

		Convey("When building the roster", func() {
			seeds, enriched, err := s.Build(ctx)

			Convey("Then every listed entry is present in dex order with its sprite", func() {
				So(err, ShouldBeNil)
				So(len(seeds), ShouldEqual, 30)
				for i, sd := range seeds {
					So(sd.PokedexNumber, ShouldEqual, i+1)
				}
				So(seeds[29].ImageURL, ShouldEqual, "https://sprites.test/30.png")
				So(seeds[29].Name, ShouldEqual, "Mon30")
				So(seeds[29].Types, ShouldResemble, []types.Category{types.Normal})
			})

			Convey("Then only the leading entries are enriched", func() {
				So(len(cat.typeHits), ShouldEqual, 25)
				So(enriched, ShouldEqual, 24)
				So(seeds[20].Types, ShouldResemble, []types.Category{types.Normal, types.Flying})
			})

			Convey("Then enrichment failures keep the placeholder and types are sanitized", func() {
				So(seeds[22].Types, ShouldResemble, []types.Category{types.Normal})
				So(seeds[23].Types, ShouldResemble, []types.Category{types.Poison})
			})

			Convey("Then corrections override names and types", func() {
				So(seeds[0].Name, ShouldEqual, "Bulbasaur")
				So(seeds[0].Types, ShouldResemble, []types.Category{types.Grass, types.Poison})
				So(seeds[5].Types, ShouldResemble, []types.Category{types.Fire, types.Flying})
				So(seeds[24].Name, ShouldEqual, "Pikachu")
				So(seeds[24].Types, ShouldResemble, []types.Category{types.Electric})
			})
		})

		Convey("When the catalogue cannot be listed", func() {
			cat.listErr = errors.New("connection refused")
			_, _, err := s.Build(ctx)

			Convey("Then the build fails as an upstream seed error", func() {
				So(errors.Is(err, model.ErrUpstreamSeed), ShouldBeTrue)
			})
		})

		Convey("When enrichment is disabled", func() {
			quiet := New(cat, WithRosterSize(30), WithEnrichCount(0))
			_, enriched, err := quiet.Build(ctx)

			Convey("Then no type lookups happen", func() {
				So(err, ShouldBeNil)
				So(enriched, ShouldEqual, 0)
				So(len(cat.typeHits), ShouldEqual, 0)
			})
		})
	})
}

func TestRosterAndLoad(t *testing.T) {
	Convey("Given a seeder", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()

		Convey("When the catalogue is down", func() {
			cat := catalogue(0)
			cat.listErr = errors.New("503")
			s := New(cat)
			seeds, rep, err := s.Roster(ctx)

			Convey("Then the four starters are used", func() {
				So(err, ShouldBeNil)
				So(rep.Fallback, ShouldBeTrue)
				So(rep.RunID, ShouldNotBeEmpty)
				So(len(seeds), ShouldEqual, 4)
				names := []string{seeds[0].Name, seeds[1].Name, seeds[2].Name, seeds[3].Name}
				So(names, ShouldResemble, []string{"Bulbasaur", "Charmander", "Squirtle", "Pikachu"})
				So(seeds[3].ImageURL, ShouldEqual, DefaultSpriteBaseURL+"/25.png")
			})
		})

		Convey("When the context is already cancelled", func() {
			cat := catalogue(5)
			cat.listErr = context.Canceled
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err := New(cat).Roster(cctx)

			Convey("Then the error is returned instead of falling back", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When loading seeds into a store", func() {
			s := New(catalogue(0))
			u := &memUpserter{byDex: map[int]model.EntitySeed{}}
			n, err := Load(ctx, u, s.Fallback())

			Convey("Then each one is upserted", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 4)
				So(u.byDex[7].Name, ShouldEqual, "Squirtle")
			})

			Convey("And a write fails midway", func() {
				u.fail = 7
				n, err := Load(ctx, u, s.Fallback())

				Convey("Then the count so far and the error are returned", func() {
					So(err, ShouldNotBeNil)
					So(n, ShouldEqual, 2)
				})
			})
		})
	})
}
