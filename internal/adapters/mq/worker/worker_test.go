package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/pokerank/internal/adapters/mq/queue"
	"github.com/okian/pokerank/internal/adapters/mq/worker"
	logging "github.com/okian/pokerank/pkg/logger"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type recordingHandler struct {
	mu      sync.Mutex
	handled []int
	fail    map[int]error
	delay   time.Duration
}

func (h *recordingHandler) Handle(ctx context.Context, job queue.Job) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, job.PokedexNumber)
	return h.fail[job.PokedexNumber]
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker reading a mock queue", t, func() {
		convey.So(logging.Init(), convey.ShouldBeNil)
		ctx := context.Background()
		mq := newMockQueue()
		h := &recordingHandler{fail: map[int]error{2: errors.New("upstream 500")}}
		w := worker.NewInMemoryWorker(mq, h, worker.WithName("test-worker"))

		convey.Convey("When jobs arrive and the queue closes", func() {
			mq.jobs <- queue.Job{PokedexNumber: 1}
			mq.jobs <- queue.Job{PokedexNumber: 2}
			mq.jobs <- queue.Job{PokedexNumber: 3}
			_ = mq.Close()
			w.Run(ctx)

			convey.Convey("Then every job is handled and failures do not stop the loop", func() {
				convey.So(h.handled, convey.ShouldResemble, []int{1, 2, 3})
			})
		})

		convey.Convey("When the worker is shut down while idle", func() {
			go w.Run(ctx)
			err := w.Shutdown(ctx)

			convey.Convey("Then it exits cleanly and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			go w.Run(cctx)
			cancel()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When shutdown outlives its deadline", func() {
			slow := &recordingHandler{delay: 200 * time.Millisecond}
			sw := worker.NewInMemoryWorker(mq, slow)
			mq.jobs <- queue.Job{PokedexNumber: 1}
			go sw.Run(ctx)
			time.Sleep(20 * time.Millisecond)
			dctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			err := sw.Shutdown(dctx)

			convey.Convey("Then a timeout error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over an in-memory queue", t, func() {
		convey.So(logging.Init(), convey.ShouldBeNil)
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		h := &recordingHandler{}
		p := worker.NewPool(4, q, h)

		convey.Convey("When jobs are enqueued and the queue is closed", func() {
			p.Start(ctx)
			for i := 1; i <= 50; i++ {
				convey.So(q.Enqueue(ctx, queue.Job{PokedexNumber: i}), convey.ShouldBeTrue)
			}
			_ = q.Close()
			err := p.Wait(ctx)

			convey.Convey("Then all jobs are handled exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Size(), convey.ShouldEqual, 4)
				convey.So(h.count(), convey.ShouldEqual, 50)
				seen := map[int]bool{}
				for _, n := range h.handled {
					seen[n] = true
				}
				convey.So(len(seen), convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When the pool is shut down", func() {
			p.Start(ctx)
			err := p.Shutdown(ctx)

			convey.Convey("Then the queue is closed and workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When created with a non-positive size", func() {
			dp := worker.NewPool(0, q, h)

			convey.Convey("Then it sizes itself to the CPU count", func() {
				convey.So(dp.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When waiting with an expired context", func() {
			p.Start(ctx)
			wctx, cancel := context.WithCancel(ctx)
			cancel()
			err := p.Wait(wctx)

			convey.Convey("Then the context error is returned", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				_ = p.Shutdown(ctx)
			})
		})
	})
}
