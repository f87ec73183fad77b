package probe_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-guard/internal/metrics"
	"github.com/angeloszaimis/circuit-guard/internal/probe"
	"github.com/angeloszaimis/circuit-guard/internal/upstream"
)

func TestProbe(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Probe Suite")
}

var _ = Describe("Run", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		healthy atomic.Bool
		server  *httptest.Server
		up      *upstream.Upstream
		cb      *circuitbreaker.CircuitBreaker
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		healthy.Store(true)

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				http.NotFound(w, r)
				return
			}
			if healthy.Load() {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		u, err := url.Parse(server.URL)
		Expect(err).NotTo(HaveOccurred())
		up = upstream.New("datastore", u)
		cb = circuitbreaker.NewCircuitBreaker(2, 10*time.Second)
	})

	AfterEach(func() {
		cancel()
		server.Close()
	})

	Context("healthy upstream", func() {
		It("should keep the upstream healthy and record probe latency", func() {
			go probe.Run(ctx, up, cb, 10*time.Millisecond, slog.Default(), nil)

			Eventually(up.LastProbe, time.Second).ShouldNot(BeZero())
			Expect(up.IsHealthy()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Context("failing upstream", func() {
		It("should mark the upstream unhealthy and trip the breaker", func() {
			healthy.Store(false)
			go probe.Run(ctx, up, cb, 10*time.Millisecond, slog.Default(), nil)

			Eventually(up.IsHealthy, time.Second).Should(BeFalse())
			Eventually(cb.State, time.Second).Should(Equal(circuitbreaker.StateOpen))
		})

		It("should stop hitting the network while the circuit is open", func() {
			healthy.Store(false)
			collector := metrics.NewCollector(128, slog.Default())
			collector.Start(ctx)

			go probe.Run(ctx, up, cb, 10*time.Millisecond, slog.Default(), collector)

			Eventually(cb.State, time.Second).Should(Equal(circuitbreaker.StateOpen))
			Eventually(func() int64 {
				return collector.Snapshot().Dependencies["datastore"].Rejections
			}, time.Second).Should(BeNumerically(">", 0))

			// The failure streak is frozen at the threshold while open.
			Expect(cb.ConsecutiveFailures()).To(Equal(2))
		})
	})

	Context("recovering upstream", func() {
		It("should close the breaker and restore health after the open window", func() {
			healthy.Store(false)
			cb = circuitbreaker.NewCircuitBreaker(2, 50*time.Millisecond)
			go probe.Run(ctx, up, cb, 10*time.Millisecond, slog.Default(), nil)

			Eventually(cb.State, time.Second).Should(Equal(circuitbreaker.StateOpen))

			healthy.Store(true)
			Eventually(cb.State, time.Second).Should(Equal(circuitbreaker.StateClosed))
			Eventually(up.IsHealthy, time.Second).Should(BeTrue())
			Expect(cb.ConsecutiveFailures()).To(Equal(0))
		})
	})
})
