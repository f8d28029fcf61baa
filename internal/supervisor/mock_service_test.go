// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// mockService counts its runs and can be told to fail a number of times
// before it settles.
type mockService struct {
	name       string
	startCount atomic.Int32
	stopCount  atomic.Int32

	mu       sync.Mutex
	failures int32
	maxFails int32
}

func newMockService(name string) *mockService {
	return &mockService{name: name}
}

func (m *mockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)
	defer m.stopCount.Add(1)

	m.mu.Lock()
	if m.failures < m.maxFails {
		m.failures++
		n := m.failures
		m.mu.Unlock()
		return fmt.Errorf("%s: simulated failure %d", m.name, n)
	}
	m.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) setFailCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxFails = int32(n)
}

func (m *mockService) String() string { return m.name }
