package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.votesRecorded.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_unit_votes_recorded_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording votes", func() {
			before := testutil.ToFloat64(globalManager.votesRecorded)
			RecordVote(16)
			RecordVote(-9)

			Convey("Then the vote counter advances", func() {
				So(testutil.ToFloat64(globalManager.votesRecorded), ShouldEqual, before+2)
			})
		})

		Convey("When recording rejections", func() {
			RecordVoteRejected("not_found")

			Convey("Then the reason is labelled", func() {
				So(testutil.ToFloat64(globalManager.votesRejected.WithLabelValues("not_found")), ShouldBeGreaterThanOrEqualTo, 1.0)
			})
		})

		Convey("When updating gauges", func() {
			UpdateEntitiesTotal(1025)
			UpdateVotesTotal(42)
			UpdateBreakerState(2)

			Convey("Then gauges hold the latest values", func() {
				So(testutil.ToFloat64(globalManager.entitiesTotal), ShouldEqual, 1025.0)
				So(testutil.ToFloat64(globalManager.votesTotal), ShouldEqual, 42.0)
				So(testutil.ToFloat64(globalManager.breakerState), ShouldEqual, 2.0)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordMatchupServed()
				RecordRankingServed()
				RecordSeedRun("fallback", 12, 4)
				RecordUpstreamRequest("pokemon", 3)
				RecordUpstreamFailure("list", "timeout")
				RecordRepositoryLatency("memory", "apply_match", 0.1)
				UpdateQueueCapacity(64)
				UpdateQueueSize(3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(4)
				RecordWorkerJob("ok", 5)
				RecordHTTPRequest("vote", "POST", "200")
				RecordHTTPRequestDuration("vote", "POST", "200", 1)
				RecordErrorByComponent("seed", "upstream")
				RecordErrorByEndpoint("vote", "POST", "not_found")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("When exporting the registry", func() {
			RecordMatchupServed()
			out, err := testutil.CollectAndLint(globalManager.matchupsServed)

			Convey("Then the exposition is lint clean", func() {
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
				So(GetRegistry(), ShouldNotBeNil)
			})
		})
	})
}
