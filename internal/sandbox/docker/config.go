package docker

import "time"

// Config holds the configuration for container-isolated execution.
type Config struct {
	// Image is the Python image harness processes run in.
	Image string
	// MemoryLimit is the container memory ceiling in bytes. This is the
	// outer bound; the per-request address-space rlimit applied by the
	// harness inside the container is the authoritative one.
	MemoryLimit int64
	// CPULimit is the number of CPUs the container may use.
	CPULimit float64
	// StartupGrace is added to each request's wall-clock deadline to cover
	// exec setup inside the container.
	StartupGrace time.Duration
	// PoolSize is the number of pre-warmed containers to keep ready.
	PoolSize int
}

// DefaultConfig provides sensible defaults for the container boundary.
func DefaultConfig() Config {
	return Config{
		Image:        "python:3.12-alpine",
		MemoryLimit:  256 * 1024 * 1024,
		CPULimit:     0.5,
		StartupGrace: 3 * time.Second,
		PoolSize:     3,
	}
}
