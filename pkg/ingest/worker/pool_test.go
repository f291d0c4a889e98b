package worker_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/ingest"
	"github.com/papercomputeco/kb/pkg/ingest/worker"
	"github.com/papercomputeco/kb/pkg/logger"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
	"github.com/papercomputeco/kb/pkg/storage/inmemory"
)

// blockingIngester holds every job until release is closed.
type blockingIngester struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	seen    []string
}

func newBlockingIngester() *blockingIngester {
	return &blockingIngester{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *blockingIngester) InsertStatementWithChunks(_ context.Context, s statement.Statement) (*ingest.Result, error) {
	b.started <- struct{}{}
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen = append(b.seen, s.Subject)
	if s.Subject == "fail" {
		return nil, errors.New("boom")
	}
	return &ingest.Result{StatementID: int64(len(b.seen))}, nil
}

var _ = Describe("Worker Pool", func() {
	It("requires an ingester", func() {
		_, err := worker.NewPool(&worker.Config{})
		Expect(err).To(MatchError(worker.ErrIngesterRequired))
	})

	Describe("with the ingestion pipeline", func() {
		var (
			driver *inmemory.Driver
			wp     *worker.Pool
		)

		BeforeEach(func() {
			driver = inmemory.NewDriver(3)
			p, err := ingest.New(driver, ingest.WithLogger(logger.Nop()))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(p.Close)

			wp, err = worker.NewPool(&worker.Config{Ingester: p, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
		})

		It("stores enqueued statements with their chunks once drained", func() {
			for _, o := range []string{"Alpha", "Beta", "Gamma"} {
				Expect(wp.Enqueue(worker.Job{Statement: statement.Statement{
					Subject: "http://example.org/" + o, Predicate: "http://example.org/name", Object: o,
					TermType: statement.Literal,
				}})).To(BeTrue())
			}
			wp.Close()

			stats, err := driver.Stats(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(storage.Stats{Statements: 3, Chunks: 3}))
			Expect(wp.Stats().Processed).To(Equal(int64(3)))
		})

		It("rejects jobs after Close", func() {
			wp.Close()
			Expect(wp.Enqueue(worker.Job{})).To(BeFalse())
			Expect(wp.Stats().Dropped).To(Equal(int64(1)))
		})

		It("tolerates repeated Close", func() {
			wp.Close()
			Expect(wp.Close).NotTo(Panic())
		})
	})

	It("drops jobs when the queue is full", func() {
		b := newBlockingIngester()
		wp, err := worker.NewPool(&worker.Config{Ingester: b, NumWorkers: 1, QueueSize: 1, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		// The worker holds "one" while "two" fills the queue.
		Expect(wp.Enqueue(worker.Job{Statement: statement.Statement{Subject: "one"}})).To(BeTrue())
		Eventually(b.started).Should(Receive())
		Expect(wp.Enqueue(worker.Job{Statement: statement.Statement{Subject: "two"}})).To(BeTrue())
		Expect(wp.Enqueue(worker.Job{Statement: statement.Statement{Subject: "three"}})).To(BeFalse())

		close(b.release)
		wp.Close()

		Expect(wp.Stats()).To(Equal(worker.Stats{Enqueued: 2, Dropped: 1, Processed: 2}))
		Expect(b.seen).To(Equal([]string{"one", "two"}))
	})

	It("counts failed jobs", func() {
		b := newBlockingIngester()
		close(b.release)
		wp, err := worker.NewPool(&worker.Config{Ingester: b, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(worker.Job{Statement: statement.Statement{Subject: "fail"}})).To(BeTrue())
		Expect(wp.Enqueue(worker.Job{Statement: statement.Statement{Subject: "ok"}})).To(BeTrue())
		wp.Close()

		Expect(wp.Stats().Failed).To(Equal(int64(1)))
		Expect(wp.Stats().Processed).To(Equal(int64(1)))
	})
})
