package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pokerank/internal/adapters/repository"
	service "github.com/okian/pokerank/internal/app"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/seed"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/okian/pokerank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// staticRoster serves a fixed roster and counts calls.
type staticRoster struct {
	seeds    []model.EntitySeed
	fallback bool
	err      error
	calls    atomic.Int32
}

func (r *staticRoster) Roster(context.Context) ([]model.EntitySeed, seed.Report, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, seed.Report{}, r.err
	}
	return r.seeds, seed.Report{RunID: "test", Upserted: len(r.seeds), Fallback: r.fallback}, nil
}

func rosterOf(n int) *staticRoster {
	seeds := make([]model.EntitySeed, n)
	for i := range seeds {
		seeds[i] = model.EntitySeed{
			PokedexNumber: i + 1,
			Name:          fmt.Sprintf("Mon %d", i+1),
			ImageURL:      fmt.Sprintf("https://img.test/%d.png", i+1),
			Types:         []types.Category{types.All()[i%len(types.All())]},
		}
	}
	return &staticRoster{seeds: seeds}
}

func newService(roster service.RosterSource, opts ...service.Option) (*service.Service, repository.Store) {
	store := repository.NewMemStore(context.Background())
	opts = append([]service.Option{service.WithSelectorSeed(1, 2)}, opts...)
	return service.New(store, roster, opts...), store
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc, _ := newService(rosterOf(2))
		defer svc.Stop()

		Convey("Then it should have sensible defaults", func() {
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["storage"], ShouldEqual, "memory")
			So(stats["kFactor"], ShouldEqual, 32)
			So(stats["entities"], ShouldEqual, 0)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc, _ := newService(rosterOf(2),
			service.WithKFactor(16),
			service.WithDedupeSize(10),
			service.WithGaugeInterval(time.Millisecond),
		)
		defer svc.Stop()

		Convey("Then the options are applied", func() {
			So(svc.GetStats(context.Background())["kFactor"], ShouldEqual, 16)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, _ := newService(rosterOf(4), service.WithGaugeInterval(5*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When starting it again", func() {
			err := svc.Start(ctx)

			Convey("Then it is a no-op", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats(ctx)["started"], ShouldEqual, true)
			})
		})

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})

			Convey("And stopping again should not panic", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_Init(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		roster := rosterOf(5)
		svc, store := newService(roster)
		defer svc.Stop()

		Convey("When initializing", func() {
			res, err := svc.Init(ctx, false)

			Convey("Then the roster is loaded", func() {
				So(err, ShouldBeNil)
				So(res.Seeded, ShouldBeTrue)
				So(res.Count, ShouldEqual, 5)
				So(res.Message, ShouldEqual, "Initialized 5 Pokémon")
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 5)
			})

			Convey("And initializing again leaves the store alone", func() {
				again, err := svc.Init(ctx, false)
				So(err, ShouldBeNil)
				So(again.Seeded, ShouldBeFalse)
				So(again.Message, ShouldEqual, "Database already contains 5 Pokémon")
				So(roster.calls.Load(), ShouldEqual, int32(1))
			})
		})

		Convey("When the roster cannot be built", func() {
			roster.err = model.ErrUpstreamSeed
			_, err := svc.Init(ctx, false)

			Convey("Then the error is reported and nothing is stored", func() {
				So(errors.Is(err, model.ErrUpstreamSeed), ShouldBeTrue)
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When the roster is the fallback set", func() {
			roster.fallback = true
			res, err := svc.Init(ctx, false)

			Convey("Then the result says so", func() {
				So(err, ShouldBeNil)
				So(res.Fallback, ShouldBeTrue)
			})
		})
	})

	Convey("Given a store with votes", t, func() {
		ctx := context.Background()
		svc, store := newService(rosterOf(3))
		defer svc.Stop()
		_, err := svc.Init(ctx, false)
		So(err, ShouldBeNil)
		_, err = svc.Vote(ctx, model.VoteInput{WinnerID: 1, LoserID: 2}, "")
		So(err, ShouldBeNil)

		Convey("When initializing with reset", func() {
			res, err := svc.Init(ctx, true)

			Convey("Then ledger and entities are rebuilt", func() {
				So(err, ShouldBeNil)
				So(res.Message, ShouldEqual, "Initialized 3 Pokémon")
				votes, _ := store.CountVotes(ctx)
				So(votes, ShouldEqual, 0)
				top, _ := store.TopByRating(ctx, 0)
				for _, e := range top {
					So(e.Rating, ShouldEqual, model.DefaultRating)
				}
			})
		})

		Convey("When reset is disabled", func() {
			locked, _ := newService(rosterOf(3), service.WithAllowReset(false))
			_, err := locked.Init(ctx, true)

			Convey("Then the request is refused", func() {
				So(errors.Is(err, service.ErrResetDisabled), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			})
		})
	})
}

func TestService_Matchup(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		roster := rosterOf(4)
		svc, _ := newService(roster)
		defer svc.Stop()

		Convey("When requesting a matchup", func() {
			m, err := svc.Matchup(ctx)

			Convey("Then the store is seeded on demand", func() {
				So(err, ShouldBeNil)
				So(roster.calls.Load(), ShouldEqual, int32(1))
				So(m.EntityA.ID, ShouldNotEqual, m.EntityB.ID)
			})
		})
	})

	Convey("Given a roster of one", t, func() {
		svc, _ := newService(rosterOf(1))
		defer svc.Stop()

		Convey("When requesting a matchup", func() {
			_, err := svc.Matchup(context.Background())

			Convey("Then there is not enough data", func() {
				So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
			})
		})
	})
}

func TestService_Vote(t *testing.T) {
	Convey("Given two equal entities", t, func() {
		ctx := context.Background()
		svc, store := newService(rosterOf(2))
		defer svc.Stop()
		_, err := svc.Init(ctx, false)
		So(err, ShouldBeNil)

		Convey("When voting", func() {
			out, err := svc.Vote(ctx, model.VoteInput{WinnerID: 1, LoserID: 2}, "")

			Convey("Then ratings move by sixteen each way", func() {
				So(err, ShouldBeNil)
				So(out.Winner.Rating, ShouldEqual, 1516)
				So(out.Loser.Rating, ShouldEqual, 1484)
				So(out.Vote.WinnerRatingDelta, ShouldEqual, 16)
				So(out.Vote.LoserRatingDelta, ShouldEqual, -16)
				So(out.Winner.Wins, ShouldEqual, 1)
				So(out.Loser.Losses, ShouldEqual, 1)
			})

			Convey("And a follow-up matchup is offered", func() {
				So(out.NewMatchup, ShouldNotBeNil)
				So(out.NewMatchup.EntityA.ID, ShouldNotEqual, out.NewMatchup.EntityB.ID)
			})

			Convey("And the ledger holds the vote", func() {
				n, _ := store.CountVotes(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When voting with an unknown id", func() {
			_, err := svc.Vote(ctx, model.VoteInput{WinnerID: 1, LoserID: 99}, "")

			Convey("Then nothing changes", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
				e, _ := store.GetByID(ctx, 1)
				So(e.Rating, ShouldEqual, model.DefaultRating)
				So(e.Wins, ShouldEqual, 0)
				n, _ := store.CountVotes(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When voting for the same entity twice", func() {
			_, err := svc.Vote(ctx, model.VoteInput{WinnerID: 1, LoserID: 1}, "")

			Convey("Then the input is rejected", func() {
				So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			})
		})

		Convey("When an idempotency key is reused", func() {
			_, err1 := svc.Vote(ctx, model.VoteInput{WinnerID: 1, LoserID: 2}, "k-1")
			_, err2 := svc.Vote(ctx, model.VoteInput{WinnerID: 1, LoserID: 2}, "k-1")

			Convey("Then only the first vote counts", func() {
				So(err1, ShouldBeNil)
				So(errors.Is(err2, model.ErrDuplicateVote), ShouldBeTrue)
				n, _ := store.CountVotes(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When a keyed vote fails", func() {
			_, err1 := svc.Vote(ctx, model.VoteInput{WinnerID: 1, LoserID: 42}, "k-2")
			_, err2 := svc.Vote(ctx, model.VoteInput{WinnerID: 1, LoserID: 2}, "k-2")

			Convey("Then the key can be retried", func() {
				So(errors.Is(err1, model.ErrNotFound), ShouldBeTrue)
				So(err2, ShouldBeNil)
			})
		})

		Convey("When the caller's context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := svc.Vote(cctx, model.VoteInput{WinnerID: 2, LoserID: 1}, "")

			Convey("Then the vote still commits", func() {
				So(err, ShouldBeNil)
				e, _ := store.GetByID(ctx, 2)
				So(e.Wins, ShouldEqual, 1)
			})
		})
	})
}

func TestService_Reads(t *testing.T) {
	Convey("Given a seeded store with a few votes", t, func() {
		ctx := context.Background()
		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		svc, _ := newService(rosterOf(4),
			service.WithClock(func() time.Time { return now }),
			service.WithLocation(time.UTC),
			service.WithMaxRecentLimit(2),
		)
		defer svc.Stop()
		_, err := svc.Init(ctx, false)
		So(err, ShouldBeNil)
		for _, in := range []model.VoteInput{{WinnerID: 1, LoserID: 2}, {WinnerID: 1, LoserID: 3}, {WinnerID: 4, LoserID: 2}} {
			_, err := svc.Vote(ctx, in, "")
			So(err, ShouldBeNil)
		}

		Convey("When reading rankings", func() {
			ranked, err := svc.Rankings(ctx, 2)

			Convey("Then the leader comes first", func() {
				So(err, ShouldBeNil)
				So(ranked, ShouldHaveLength, 2)
				So(ranked[0].ID, ShouldEqual, int64(1))
				So(ranked[0].Rank, ShouldEqual, 1)
				So(ranked[1].Rank, ShouldEqual, 2)
			})

			Convey("And a zero limit returns everyone", func() {
				all, err := svc.Rankings(ctx, 0)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 4)
			})
		})

		Convey("When reading recent votes beyond the cap", func() {
			recent, err := svc.RecentVotes(ctx, 50)

			Convey("Then the cap applies and the newest comes first", func() {
				So(err, ShouldBeNil)
				So(recent, ShouldHaveLength, 2)
				So(recent[0].Winner.ID, ShouldEqual, int64(4))
			})
		})

		Convey("When reading recent votes with a bad limit", func() {
			_, err := svc.RecentVotes(ctx, 0)

			Convey("Then the limit is rejected", func() {
				So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			})
		})

		Convey("When reading stats", func() {
			st, err := svc.Stats(ctx)

			Convey("Then totals match", func() {
				So(err, ShouldBeNil)
				So(st.TotalVotes, ShouldEqual, 3)
				So(st.TotalEntities, ShouldEqual, 4)
				So(st.PerCategoryWinRate, ShouldNotBeEmpty)
			})
		})

		Convey("When resetting votes", func() {
			So(svc.ResetVotes(ctx), ShouldBeNil)

			Convey("Then ratings and ledger return to defaults", func() {
				entities, votes, err := svc.Counts(ctx)
				So(err, ShouldBeNil)
				So(entities, ShouldEqual, 4)
				So(votes, ShouldEqual, 0)
				ranked, _ := svc.Rankings(ctx, 0)
				for _, r := range ranked {
					So(r.Rating, ShouldEqual, model.DefaultRating)
					So(r.Wins+r.Losses, ShouldEqual, 0)
				}
			})
		})

		Convey("When wiping", func() {
			So(svc.Wipe(ctx), ShouldBeNil)

			Convey("Then the store is empty", func() {
				entities, votes, err := svc.Counts(ctx)
				So(err, ShouldBeNil)
				So(entities, ShouldEqual, 0)
				So(votes, ShouldEqual, 0)
			})
		})
	})
}
