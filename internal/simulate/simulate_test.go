package simulate_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/pokerank/internal/adapters/http/api"
	"github.com/okian/pokerank/internal/adapters/repository"
	service "github.com/okian/pokerank/internal/app"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/seed"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/okian/pokerank/internal/simulate"
	"github.com/okian/pokerank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type roster struct{ n int }

func (r roster) Roster(context.Context) ([]model.EntitySeed, seed.Report, error) {
	seeds := make([]model.EntitySeed, r.n)
	for i := range seeds {
		seeds[i] = model.EntitySeed{
			PokedexNumber: i + 1,
			Name:          fmt.Sprintf("Mon %d", i+1),
			Types:         []types.Category{types.Fire},
		}
	}
	return seeds, seed.Report{Upserted: r.n}, nil
}

func newServer(t *testing.T, entities int) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemStore(ctx)
	svc := service.New(store, roster{n: entities}, service.WithSelectorSeed(3, 4))
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	srv := api.NewServer(svc, svc, api.DefaultLimits())
	srv.Register(ctx, mux)
	ts := httptest.NewServer(srv.Handler(mux))
	t.Cleanup(ts.Close)
	return ts
}

func TestRun(t *testing.T) {
	Convey("Given a running server", t, func() {
		ts := newServer(t, 12)
		out := filepath.Join(t.TempDir(), "runs", "votes.json")
		cfg := &simulate.Config{
			BaseURL:    ts.URL,
			Votes:      60,
			Workers:    4,
			Timeout:    5 * time.Second,
			Seed:       7,
			Bias:       0.7,
			OutputFile: out,
		}

		Convey("When the simulation runs", func() {
			stats, err := simulate.Run(context.Background(), cfg)

			Convey("Then every vote is accepted and the state verifies", func() {
				So(err, ShouldBeNil)
				So(stats.VotesSubmitted, ShouldEqual, 60)
				So(stats.VotesAccepted, ShouldEqual, 60)
				So(stats.VotesFailed, ShouldEqual, 0)
				So(stats.EntitiesRanked, ShouldEqual, 12)
				So(stats.ServerVoteTotal, ShouldEqual, 60)
				So(stats.Duration, ShouldBeGreaterThan, time.Duration(0))
			})

			Convey("Then the accepted votes are written out", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"winnerRatingDelta"`)
			})
		})

		Convey("When the simulation resets first", func() {
			cfg.Reset = true
			cfg.OutputFile = ""
			_, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			stats, err := simulate.Run(context.Background(), cfg)

			Convey("Then the server totals restart from zero", func() {
				So(err, ShouldBeNil)
				So(stats.ServerVoteTotal, ShouldEqual, 60)
			})
		})
	})

	Convey("Given no server", t, func() {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		Convey("When the simulation runs", func() {
			_, err := simulate.Run(context.Background(), &simulate.Config{BaseURL: ts.URL, Votes: 1, Timeout: time.Second})

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health check")
			})
		})
	})

	Convey("Given a server with a single entity", t, func() {
		ts := newServer(t, 1)

		Convey("When the simulation runs", func() {
			stats, err := simulate.Run(context.Background(), &simulate.Config{
				BaseURL: ts.URL, Votes: 3, Workers: 1, Timeout: time.Second, Seed: 1,
			})

			Convey("Then votes fail and the ranking still verifies", func() {
				So(err, ShouldBeNil)
				So(stats.VotesFailed, ShouldEqual, 3)
				So(stats.VotesAccepted, ShouldEqual, 0)
				So(stats.EntitiesRanked, ShouldEqual, 1)
			})
		})
	})
}

func TestHTTPClientStatusError(t *testing.T) {
	Convey("Given a server answering 409", t, func() {
		keys := make(chan string, 1)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keys <- r.Header.Get("Idempotency-Key")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false}`))
		}))
		defer ts.Close()

		Convey("When voting", func() {
			_, err := simulate.NewHTTPClient(ts.URL+"/", time.Second).Vote(context.Background(), simulate.VoteRequest{WinnerID: 1, LoserID: 2})

			Convey("Then the status is exposed", func() {
				var se *simulate.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Code, ShouldEqual, http.StatusConflict)
				So(errors.Is(err, simulate.ErrStatus), ShouldBeTrue)
				So(<-keys, ShouldNotBeEmpty)
			})
		})
	})
}

func TestVerifyRankings(t *testing.T) {
	row := func(rank int, id int64, rating int) simulate.RankedEntity {
		return simulate.RankedEntity{Entity: simulate.Entity{ID: id, Rating: rating}, Rank: rank}
	}

	Convey("Given rankings", t, func() {
		Convey("Then a consistent ranking passes", func() {
			So(simulate.VerifyRankings([]simulate.RankedEntity{row(1, 3, 1520), row(2, 1, 1500), row(3, 2, 1500)}), ShouldBeNil)
		})

		Convey("Then an empty ranking fails", func() {
			So(errors.Is(simulate.VerifyRankings(nil), simulate.ErrVerification), ShouldBeTrue)
		})

		Convey("Then a repeated entity fails", func() {
			err := simulate.VerifyRankings([]simulate.RankedEntity{row(1, 1, 1500), row(2, 1, 1500)})
			So(errors.Is(err, simulate.ErrVerification), ShouldBeTrue)
		})

		Convey("Then a gap in ranks fails", func() {
			err := simulate.VerifyRankings([]simulate.RankedEntity{row(1, 1, 1500), row(3, 2, 1490)})
			So(err, ShouldNotBeNil)
		})

		Convey("Then ascending ratings fail", func() {
			err := simulate.VerifyRankings([]simulate.RankedEntity{row(1, 1, 1490), row(2, 2, 1500)})
			So(err, ShouldNotBeNil)
		})

		Convey("Then an unordered tie fails", func() {
			err := simulate.VerifyRankings([]simulate.RankedEntity{row(1, 2, 1500), row(2, 1, 1500)})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given server stats", t, func() {
		So(simulate.VerifyStats(simulate.ServerStats{TotalVotes: 5, TotalEntities: 3}, 3, 5), ShouldBeNil)
		So(simulate.VerifyStats(simulate.ServerStats{TotalVotes: 4, TotalEntities: 3}, 3, 5), ShouldNotBeNil)
		So(simulate.VerifyStats(simulate.ServerStats{TotalVotes: 5, TotalEntities: 2}, 3, 5), ShouldNotBeNil)
	})
}
