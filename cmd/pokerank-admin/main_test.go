package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/pokerank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// writeConfig points the admin tool at a sqlite file and an upstream that
// always fails, so seeding uses the fallback roster.
func writeConfig(t *testing.T, upstream string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pokerank.yaml")
	body := fmt.Sprintf(`
storage_driver: sqlite
sqlite_path: %q
pokeapi_base_url: %q
pokeapi_timeout_ms: 500
seed_workers: 1
`, filepath.Join(dir, "pokerank.db"), upstream)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAdminCommands(t *testing.T) {
	convey.Convey("Given an admin app over a sqlite store", t, func() {
		t.Setenv("POKERANK_CONFIG", "")
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer upstream.Close()
		cfgPath := writeConfig(t, upstream.URL)

		run := func(args ...string) (string, error) {
			var out bytes.Buffer
			argv := append([]string{"pokerank-admin", "--config", cfgPath}, args...)
			err := newApp(&out).RunContext(context.Background(), argv)
			return out.String(), err
		}

		convey.Convey("When migrating", func() {
			out, err := run("migrate")

			convey.Convey("Then the schema is reported ready", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "schema ready on sqlite")
			})
		})

		convey.Convey("When seeding twice", func() {
			first, err1 := run("seed")
			second, err2 := run("seed")

			convey.Convey("Then the second run finds the catalogue populated", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(first, convey.ShouldContainSubstring, "Initialized 4 Pokémon")
				convey.So(second, convey.ShouldContainSubstring, "already contains 4")
			})

			convey.Convey("Then stats report the entities", func() {
				out, err := run("stats")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"totalEntities": 4`)
				convey.So(out, convey.ShouldContainSubstring, `"totalVotes": 0`)
			})

			convey.Convey("Then a reset seed starts over", func() {
				out, err := run("seed", "--reset")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Initialized 4 Pokémon")
			})

			convey.Convey("Then reset-votes keeps the entities", func() {
				_, err := run("reset-votes")
				convey.So(err, convey.ShouldBeNil)
				out, _ := run("stats")
				convey.So(out, convey.ShouldContainSubstring, `"totalEntities": 4`)
			})

			convey.Convey("Then wipe empties the store", func() {
				out, err := run("wipe")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "store wiped")
				stats, _ := run("stats")
				convey.So(stats, convey.ShouldContainSubstring, `"totalEntities": 0`)
			})
		})

		convey.Convey("When the storage driver is unknown", func() {
			_, err := run("--storage-driver", "mongo", "stats")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the log level is unknown", func() {
			_, err := run("--log-level", "loud", "stats")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
