package circuitbreaker_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/LJAM96/lmsilo-core/internal/circuitbreaker"
)

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

var _ = Describe("CircuitBreaker", func() {
	var cb *circuitbreaker.CircuitBreaker
	ctx := context.Background()

	Describe("NewCircuitBreaker", func() {
		It("should create a circuit breaker in closed state", func() {
			cb = circuitbreaker.NewCircuitBreaker("test")
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.FailureCount()).To(Equal(0))
		})

		It("should apply defaults when no options are given", func() {
			cb = circuitbreaker.NewCircuitBreaker("test")
			status := cb.Status()
			Expect(status.FailureThreshold).To(Equal(circuitbreaker.DefaultFailureThreshold))
			Expect(status.RecoveryTimeout).To(Equal(circuitbreaker.DefaultRecoveryTimeout))
		})
	})

	Describe("State transitions", func() {
		BeforeEach(func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(3),
				circuitbreaker.WithRecoveryTimeout(100*time.Millisecond))
		})

		Context("when in CLOSED state", func() {
			It("should pass calls through", func() {
				Expect(cb.Execute(ctx, succeed)).To(Succeed())
			})

			It("should remain closed after failures below threshold", func() {
				Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.FailureCount()).To(Equal(2))
			})

			It("should transition to OPEN after reaching failure threshold", func() {
				for i := 0; i < 3; i++ {
					Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				}
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should reset the failure count on success", func() {
				Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				Expect(cb.Execute(ctx, succeed)).To(Succeed())
				Expect(cb.FailureCount()).To(Equal(0))

				// One more failure should not open the circuit
				Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			})
		})

		Context("when in OPEN state", func() {
			BeforeEach(func() {
				for i := 0; i < 3; i++ {
					Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				}
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should reject calls without invoking the operation", func() {
				invoked := 0
				err := cb.Execute(ctx, func(context.Context) error {
					invoked++
					return nil
				})

				var openErr *circuitbreaker.OpenError
				Expect(errors.As(err, &openErr)).To(BeTrue())
				Expect(openErr.CircuitName).To(Equal("test"))
				Expect(openErr.RetryAfter).To(BeNumerically(">", 0))
				Expect(openErr.RetryAfter).To(BeNumerically("<=", 100*time.Millisecond))
				Expect(invoked).To(Equal(0))
			})

			It("should remain OPEN before the recovery timeout expires", func() {
				time.Sleep(50 * time.Millisecond)
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should transition to HALF-OPEN after the recovery timeout", func() {
				time.Sleep(150 * time.Millisecond)
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})
		})

		Context("when in HALF-OPEN state", func() {
			BeforeEach(func() {
				for i := 0; i < 3; i++ {
					Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				}
				time.Sleep(150 * time.Millisecond)
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should close after a successful probe", func() {
				Expect(cb.Execute(ctx, succeed)).To(Succeed())
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.FailureCount()).To(Equal(0))
			})

			It("should reopen immediately after a failed probe, regardless of threshold", func() {
				Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should start a fresh recovery timeout after a failed probe", func() {
				Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))

				err := cb.Execute(ctx, succeed)
				var openErr *circuitbreaker.OpenError
				Expect(errors.As(err, &openErr)).To(BeTrue())
				Expect(openErr.RetryAfter).To(BeNumerically(">", 0))
			})
		})
	})

	Describe("Half-open probe quota", func() {
		BeforeEach(func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(1),
				circuitbreaker.WithRecoveryTimeout(50*time.Millisecond),
				circuitbreaker.WithHalfOpenMaxCalls(1))
			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			time.Sleep(60 * time.Millisecond)
		})

		It("should reject a second call while the probe is unresolved", func() {
			done, err := cb.Allow()
			Expect(err).NotTo(HaveOccurred())

			_, err = cb.Allow()
			Expect(circuitbreaker.IsOpen(err)).To(BeTrue())

			done(nil)
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should close only after the configured number of probe successes", func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(1),
				circuitbreaker.WithRecoveryTimeout(50*time.Millisecond),
				circuitbreaker.WithHalfOpenMaxCalls(2))
			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			time.Sleep(60 * time.Millisecond)

			Expect(cb.Execute(ctx, succeed)).To(Succeed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))

			Expect(cb.Execute(ctx, succeed)).To(Succeed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Error classification", func() {
		var errDomain = errors.New("not found")

		BeforeEach(func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(2),
				circuitbreaker.WithClassifier(func(err error) bool {
					return err != nil && !errors.Is(err, errDomain)
				}))
		})

		It("should propagate non-qualifying errors without touching state", func() {
			for i := 0; i < 5; i++ {
				Expect(cb.Execute(ctx, func(context.Context) error {
					return errDomain
				})).To(MatchError(errDomain))
			}
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.FailureCount()).To(Equal(0))
		})

		It("should still trip on qualifying errors", func() {
			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should release the probe slot when a half-open probe returns a non-qualifying error", func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(1),
				circuitbreaker.WithRecoveryTimeout(20*time.Millisecond),
				circuitbreaker.WithHalfOpenMaxCalls(1),
				circuitbreaker.WithClassifier(func(err error) bool {
					return err != nil && !errors.Is(err, errDomain)
				}))

			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			time.Sleep(30 * time.Millisecond)

			// The probe's verdict is inconclusive; the circuit must stay
			// half-open with the slot available again.
			Expect(cb.Execute(ctx, func(context.Context) error {
				return errDomain
			})).To(MatchError(errDomain))
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))

			Expect(cb.Execute(ctx, succeed)).To(Succeed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Panicking operations", func() {
		It("should propagate the panic and release the probe slot", func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(1),
				circuitbreaker.WithRecoveryTimeout(20*time.Millisecond))

			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			time.Sleep(30 * time.Millisecond)

			Expect(func() {
				_ = cb.Execute(ctx, func(context.Context) error { panic("op") })
			}).To(PanicWith("op"))

			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			Expect(cb.Execute(ctx, succeed)).To(Succeed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Observer hooks", func() {
		It("should report state transitions", func() {
			var transitions []string
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(1),
				circuitbreaker.WithOnStateChange(func(from, to circuitbreaker.State) {
					transitions = append(transitions, from.String()+"->"+to.String())
				}))

			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			Expect(transitions).To(ContainElement("CLOSED->OPEN"))
		})

		It("should invoke failure and success observers", func() {
			var failures, successes int
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithOnFailure(func(error) { failures++ }),
				circuitbreaker.WithOnSuccess(func() { successes++ }))

			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			Expect(cb.Execute(ctx, succeed)).To(Succeed())
			Expect(failures).To(Equal(1))
			Expect(successes).To(Equal(1))
		})

		It("should swallow panics from misbehaving hooks", func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(1),
				circuitbreaker.WithOnStateChange(func(from, to circuitbreaker.State) { panic("hook") }),
				circuitbreaker.WithOnFailure(func(error) { panic("hook") }),
				circuitbreaker.WithOnSuccess(func() { panic("hook") }))

			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			cb.Reset()
			Expect(cb.Execute(ctx, succeed)).To(Succeed())
		})
	})

	Describe("Administrative overrides", func() {
		BeforeEach(func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(2),
				circuitbreaker.WithRecoveryTimeout(time.Minute))
		})

		It("Reset should yield CLOSED with cleared counters from any state", func() {
			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			cb.Reset()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.FailureCount()).To(Equal(0))
		})

		It("ForceOpen should yield OPEN with a full recovery timeout", func() {
			cb.ForceOpen()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb.TimeUntilRetry()).To(BeNumerically(">", 50*time.Second))
		})
	})

	Describe("Status", func() {
		It("should return a complete snapshot", func() {
			cb = circuitbreaker.NewCircuitBreaker("model-loader",
				circuitbreaker.WithFailureThreshold(3),
				circuitbreaker.WithRecoveryTimeout(time.Minute))

			status := cb.Status()
			Expect(status.Name).To(Equal("model-loader"))
			Expect(status.State).To(Equal("CLOSED"))
			Expect(status.FailureCount).To(Equal(0))
			Expect(status.FailureThreshold).To(Equal(3))
			Expect(status.RecoveryTimeout).To(Equal(time.Minute))
			Expect(status.TimeUntilRetry).To(BeZero())
		})
	})

	Describe("Recovery cycle", func() {
		It("should cycle open, half-open, closed with a short timeout", func() {
			cb = circuitbreaker.NewCircuitBreaker("test",
				circuitbreaker.WithFailureThreshold(2),
				circuitbreaker.WithRecoveryTimeout(100*time.Millisecond))

			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))
			Expect(cb.Execute(ctx, fail)).To(MatchError(errBoom))

			err := cb.Execute(ctx, succeed)
			var openErr *circuitbreaker.OpenError
			Expect(errors.As(err, &openErr)).To(BeTrue())
			Expect(openErr.RetryAfter).To(BeNumerically("~", 100*time.Millisecond, 50*time.Millisecond))

			time.Sleep(150 * time.Millisecond)

			Expect(cb.Execute(ctx, succeed)).To(Succeed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.FailureCount()).To(Equal(0))
		})
	})

	DescribeTable("State.String",
		func(state circuitbreaker.State, expected string) {
			Expect(state.String()).To(Equal(expected))
		},
		Entry("closed", circuitbreaker.StateClosed, "CLOSED"),
		Entry("open", circuitbreaker.StateOpen, "OPEN"),
		Entry("half-open", circuitbreaker.StateHalfOpen, "HALF-OPEN"),
		Entry("unknown", circuitbreaker.State(42), "UNKNOWN"),
	)
})
