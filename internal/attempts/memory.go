package attempts

import (
	"context"
	"sync"
	"time"
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Memory はプロセス内のマップで失敗回数を保持する Limiter です。
type Memory struct {
	policy   Policy
	now      func() time.Time
	lock     sync.Mutex
	attempts map[string]*attemptState
}

// NewMemory は Memory を作成します。
func NewMemory(policy Policy) *Memory {
	return &Memory{
		policy:   policy.withDefaults(),
		now:      time.Now,
		attempts: make(map[string]*attemptState),
	}
}

func (m *Memory) CheckLock(_ context.Context, client string) (time.Duration, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[client]
	if !ok {
		return 0, nil
	}
	now := m.now()
	if !now.Before(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

func (m *Memory) RecordFailure(_ context.Context, client string) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[client]
	if !ok || now.Sub(state.firstAttempt) > m.policy.Window {
		state = &attemptState{firstAttempt: now}
		m.attempts[client] = state
	}

	state.count++
	if state.count >= m.policy.MaxAttempts {
		state.lockedUntil = now.Add(m.policy.LockDuration)
		state.count = m.policy.MaxAttempts
	}

	remaining := m.policy.MaxAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (m *Memory) Reset(_ context.Context, client string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, client)
	return nil
}
