// Package counter hands out per-job execution numbers.
package counter

import (
	"context"
	"fmt"
	"sync"
)

// Store allocates execution numbers. Numbers are per job, start at 1 and strictly increase.
type Store interface {
	Next(ctx context.Context, job string) (int64, error)
}

// Memory is an in-process Store. Numbers do not survive a restart.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

// Next returns the next execution number for job
func (m *Memory) Next(ctx context.Context, job string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if job == "" {
		return 0, fmt.Errorf("job name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[job]++
	return m.counters[job], nil
}

// Seed sets the last issued number for job, so the next call returns n+1
func (m *Memory) Seed(job string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[job] = n
}
