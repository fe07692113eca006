package ratelimit

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// Feature: llm-gateway, Property 6: Rate-limit safety
// Validates: spec.md §8 property 6
//
// Drives a Tracker through a simulated stream of admit-or-wait decisions
// over a simulated timeline and asserts the sliding window never reports
// more than maxRPM admitted requests or maxTPM tokens at any point.
func TestProperty_RateLimitSafety(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 30
	properties := gopter.NewProperties(params)

	properties.Property("admitted request/token counts never exceed the configured bounds", prop.ForAll(
		func(maxRPM, maxTPM, n, tokensPerReq int) bool {
			maxRPM = 1 + maxRPM%10
			maxTPM = 100 + maxTPM%900
			n = n % 40
			tokensPerReq = 1 + tokensPerReq%50

			tr := New(maxRPM, maxTPM, zap.NewNop())
			advance := withFakeClock(tr)

			for i := 0; i < n; i++ {
				if !tr.Admit(tokensPerReq) {
					delay := tr.DelayUntilAdmit(tokensPerReq)
					if delay <= 0 {
						// Unsatisfiable (e.g. tokensPerReq alone exceeds
						// maxTPM): the wrapper rejects, nothing to record.
						// tokensPerReq's 1-50 range vs. maxTPM's 100-999
						// range means this branch is structurally
						// unreachable here; TestDelayUntilAdmit_ZeroWhen-
						// RequestAloneExceedsTPM(AfterEviction) in
						// tracker_test.go exercises it directly instead.
						continue
					}
					advance(delay)
				}
				tr.Record(tokensPerReq)

				reqs, tokens := tr.Usage()
				if reqs > maxRPM || tokens > maxTPM {
					return false
				}

				advance(time.Millisecond) // simulated spacing between requests
			}
			return true
		},
		gen.IntRange(0, 9),
		gen.IntRange(0, 899),
		gen.IntRange(0, 39),
		gen.IntRange(0, 49),
	))

	properties.TestingRun(t)
}
