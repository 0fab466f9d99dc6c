// Package memory keeps thumbnail extraction inside the container's
// memory budget.
//
// ConfigureFromEnv translates the container limit into a GOMEMLIMIT for
// the runtime, and Monitor applies backpressure on top of that: when the
// live heap crosses the pause threshold the scanner stops dispatching
// parse batches until usage falls back below the resume threshold. The
// two thresholds form a hysteresis band so a single large preview buffer
// does not flap the scanner on and off.
//
// DefaultCacheCapacity derives the in-memory thumbnail cache size from
// the same limit, so a heavily constrained container does not pin
// hundreds of decoded textures.
package memory
