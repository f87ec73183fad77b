package circuitbreaker_test

import (
	"bytes"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(nil, nil)
	})

	Describe("GetOrCreate", func() {
		It("should create a new breaker for an unknown name", func() {
			cb := registry.GetOrCreate("datastore", 5, 60*time.Second)
			Expect(cb).NotTo(BeNil())
			Expect(cb.Name()).To(Equal("datastore"))
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same breaker for the same name", func() {
			cb1 := registry.GetOrCreate("datastore", 5, 60*time.Second)
			cb2 := registry.GetOrCreate("datastore", 5, 60*time.Second)
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return different breakers for different names", func() {
			cb1 := registry.GetOrCreate("datastore", 5, 60*time.Second)
			cb2 := registry.GetOrCreate("notifier", 5, 60*time.Second)
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should keep the first configuration when a later caller differs", func() {
			cb1 := registry.GetOrCreate("datastore", 5, 60*time.Second)
			cb2 := registry.GetOrCreate("datastore", 3, 10*time.Second)

			Expect(cb2).To(BeIdenticalTo(cb1))
			Expect(cb2.FailureThreshold()).To(Equal(5))
			Expect(cb2.ResetTimeout()).To(Equal(60 * time.Second))
		})

		It("should keep the first configuration regardless of call order", func() {
			cb1 := registry.GetOrCreate("datastore", 3, 10*time.Second)
			cb2 := registry.GetOrCreate("datastore", 5, 60*time.Second)

			Expect(cb2).To(BeIdenticalTo(cb1))
			Expect(cb2.FailureThreshold()).To(Equal(3))
			Expect(cb2.ResetTimeout()).To(Equal(10 * time.Second))
		})

		It("should use the supplied configuration for new breakers", func() {
			cb := registry.GetOrCreate("datastore", 2, 50*time.Millisecond)

			cb.Execute(failingOp)
			cb.Execute(failingOp)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			time.Sleep(60 * time.Millisecond)
			invoked := false
			cb.Execute(func() (any, error) {
				invoked = true
				return nil, nil
			})
			Expect(invoked).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Configuration drift", func() {
		var buf bytes.Buffer

		BeforeEach(func() {
			buf.Reset()
			log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			registry = circuitbreaker.NewRegistry(log, nil)
		})

		It("should warn with both configurations when a later caller differs", func() {
			registry.GetOrCreate("datastore", 5, 60*time.Second)
			registry.GetOrCreate("datastore", 3, 10*time.Second)

			out := buf.String()
			Expect(out).To(ContainSubstring("configuration drift"))
			Expect(out).To(ContainSubstring("breaker=datastore"))
			Expect(out).To(ContainSubstring("existing_threshold=5"))
			Expect(out).To(ContainSubstring("existing_timeout=1m0s"))
			Expect(out).To(ContainSubstring("requested_threshold=3"))
			Expect(out).To(ContainSubstring("requested_timeout=10s"))
		})

		It("should not warn when the requested configuration matches", func() {
			registry.GetOrCreate("datastore", 5, 60*time.Second)
			registry.GetOrCreate("datastore", 5, 60*time.Second)

			Expect(buf.String()).To(BeEmpty())
		})
	})

	Describe("Named presets", func() {
		It("should hand out the datastore breaker", func() {
			cb := registry.Datastore()
			Expect(cb.Name()).To(Equal(circuitbreaker.DatastoreBreakerName))
			Expect(cb.FailureThreshold()).To(Equal(5))
			Expect(cb.ResetTimeout()).To(Equal(60 * time.Second))
			Expect(registry.Datastore()).To(BeIdenticalTo(cb))
		})

		It("should hand out the notifier breaker", func() {
			cb := registry.Notifier()
			Expect(cb.Name()).To(Equal(circuitbreaker.NotifierBreakerName))
			Expect(cb.FailureThreshold()).To(Equal(3))
			Expect(cb.ResetTimeout()).To(Equal(30 * time.Second))
		})

		It("should hand out the taskqueue breaker", func() {
			cb := registry.TaskQueue()
			Expect(cb.Name()).To(Equal(circuitbreaker.TaskQueueBreakerName))
			Expect(cb.FailureThreshold()).To(Equal(5))
			Expect(cb.ResetTimeout()).To(Equal(45 * time.Second))
		})

		It("should share state with GetOrCreate under the same name", func() {
			cb := registry.GetOrCreate(circuitbreaker.NotifierBreakerName, 3, 30*time.Second)
			Expect(registry.Notifier()).To(BeIdenticalTo(cb))
		})
	})

	Describe("Concurrent access", func() {
		It("should create exactly one breaker per name under racing first use", func() {
			const goroutines = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)

			results := make([]*circuitbreaker.CircuitBreaker, goroutines)
			for i := 0; i < goroutines; i++ {
				go func(id int) {
					defer wg.Done()
					results[id] = registry.GetOrCreate("datastore", 5, 60*time.Second)
				}(i)
			}

			wg.Wait()

			Expect(registry.Stats()).To(HaveLen(1))
			for _, cb := range results {
				Expect(cb).To(BeIdenticalTo(results[0]))
			}
		})

		It("should handle concurrent calls on a shared breaker", func() {
			const goroutines = 50

			cb := registry.GetOrCreate("datastore", 5, 60*time.Second)

			var wg sync.WaitGroup
			wg.Add(goroutines * 2)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.Execute(failingOp)
				}()
				go func() {
					defer wg.Done()
					cb.Execute(succeedingOp)
				}()
			}

			wg.Wait()

			state := cb.State()
			Expect(state).To(BeElementOf(
				circuitbreaker.StateClosed,
				circuitbreaker.StateOpen,
				circuitbreaker.StateHalfOpen,
			))
		})
	})

	Describe("ResetAll", func() {
		It("should reset every breaker without evicting it", func() {
			cb1 := registry.GetOrCreate("datastore", 1, time.Minute)
			cb2 := registry.GetOrCreate("notifier", 1, time.Minute)

			cb1.Execute(failingOp)
			cb2.Execute(failingOp)
			Expect(cb1.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb2.State()).To(Equal(circuitbreaker.StateOpen))

			registry.ResetAll()

			Expect(cb1.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb2.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(registry.Stats()).To(HaveLen(2))
			Expect(registry.GetOrCreate("datastore", 1, time.Minute)).To(BeIdenticalTo(cb1))
		})
	})

	Describe("Stats", func() {
		It("should report the state of every breaker", func() {
			registry.GetOrCreate("datastore", 5, time.Minute)
			cb := registry.GetOrCreate("notifier", 2, time.Minute)

			cb.Execute(failingOp)
			cb.Execute(failingOp)

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["datastore"].State).To(Equal("CLOSED"))
			Expect(stats["notifier"].State).To(Equal("OPEN"))
			Expect(stats["notifier"].ConsecutiveFailures).To(Equal(2))
			Expect(stats["notifier"].OpenUntil).NotTo(BeZero())
		})
	})
})
