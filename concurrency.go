package doc2img

import "runtime"

// Concurrency sizing constants.
const (
	// MinConcurrency ensures at least one render context is available.
	MinConcurrency = 1

	// MaxConcurrency caps open render contexts to bound browser memory.
	MaxConcurrency = 8

	// cpuDivisor leaves headroom for Chrome's renderer processes.
	cpuDivisor = 2
)

// ResolveConcurrency returns the render-context ceiling.
// If n > 0, returns n. Otherwise GOMAXPROCS/2 clamped to
// [MinConcurrency, MaxConcurrency].
func ResolveConcurrency(n int) int {
	if n > 0 {
		return n
	}
	return min(max(runtime.GOMAXPROCS(0)/cpuDivisor, MinConcurrency), MaxConcurrency)
}
