package sandbox

import "time"

// Defaults and fixed ceilings for one submission's interpreter process.
// Time and memory can be overridden per request; the process-count and
// output-file ceilings are not caller-configurable — there is no legitimate
// learner submission that needs more than this.
const (
	DefaultTimeLimit   = 30 * time.Second
	DefaultMemoryLimit = 128 << 20 // 128 MiB of address space

	// MaxChildProcesses bounds fork bombs even though the namespace exposes
	// no process-spawning API. Belt and braces.
	MaxChildProcesses = 10

	// MaxOutputFileBytes caps any file the process manages to create.
	// Captured stdout/stderr never touch the filesystem, so in practice this
	// only constrains escapes.
	MaxOutputFileBytes = 1 << 20 // 1 MiB
)

// Limits are the per-invocation resource ceilings. They are rendered into
// the harness preamble, which applies them to the freshly spawned
// interpreter before any untrusted code runs. Because every invocation gets
// its own process, the ceilings die with it — they can never linger and
// throttle unrelated work.
type Limits struct {
	// TimeLimit bounds both CPU time (kernel-enforced, catches CPU-bound
	// loops) and wall clock (supervisor-enforced, catches everything else).
	// The two are complementary; neither alone covers all hangs.
	TimeLimit time.Duration

	// MemoryLimit is the address-space ceiling in bytes.
	MemoryLimit int64
}

// Limits resolves the request's overrides against the defaults.
func (r Request) Limits() Limits {
	l := Limits{
		TimeLimit:   DefaultTimeLimit,
		MemoryLimit: DefaultMemoryLimit,
	}
	if r.TimeLimitSeconds > 0 {
		l.TimeLimit = time.Duration(r.TimeLimitSeconds) * time.Second
	}
	if r.MemoryLimitBytes > 0 {
		l.MemoryLimit = r.MemoryLimitBytes
	}
	return l
}

// cpuSeconds is the RLIMIT_CPU value, rounded up to whole seconds.
func (l Limits) cpuSeconds() int64 {
	secs := int64((l.TimeLimit + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
