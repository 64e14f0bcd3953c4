package solana

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ConnState is the connection state of a streaming client.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// ConnStatus is a state plus the reconnect attempt it belongs to.
type ConnStatus struct {
	State   ConnState
	Attempt int // > 0 only while reconnecting
}

func (s ConnStatus) String() string {
	if s.State == StateReconnecting {
		return fmt.Sprintf("reconnecting(%d)", s.Attempt)
	}
	return s.State.String()
}

// ConnStateMachine tracks Connected/Disconnected/Reconnecting(n) transitions and
// hands out capped exponential reconnect delays. Time is never consulted here,
// so transitions are testable without sleeping.
type ConnStateMachine struct {
	mu       sync.Mutex
	status   ConnStatus
	backoff  *backoff.ExponentialBackOff
	onChange func(ConnStatus)
}

// NewConnStateMachine creates a machine in the Disconnected state.
// Delays start at initial and double up to maxDelay.
func NewConnStateMachine(initial, maxDelay time.Duration, onChange func(ConnStatus)) *ConnStateMachine {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return &ConnStateMachine{
		status:   ConnStatus{State: StateDisconnected},
		backoff:  b,
		onChange: onChange,
	}
}

// Connected moves to Connected and resets the delay schedule.
func (m *ConnStateMachine) Connected() {
	m.mu.Lock()
	m.status = ConnStatus{State: StateConnected}
	m.backoff.Reset()
	status := m.status
	m.mu.Unlock()
	m.notify(status)
}

// Disconnected moves to Disconnected. It is a no-op while already reconnecting,
// so a failed dial does not reset the attempt count.
func (m *ConnStateMachine) Disconnected() {
	m.mu.Lock()
	if m.status.State == StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.status = ConnStatus{State: StateDisconnected}
	status := m.status
	m.mu.Unlock()
	m.notify(status)
}

// Closed moves to Disconnected from any state, ending a reconnect in progress.
func (m *ConnStateMachine) Closed() {
	m.mu.Lock()
	if m.status == (ConnStatus{State: StateDisconnected}) {
		m.mu.Unlock()
		return
	}
	m.status = ConnStatus{State: StateDisconnected}
	status := m.status
	m.mu.Unlock()
	m.notify(status)
}

// BeginReconnect moves to Reconnecting(attempt+1) and returns the attempt number
// and how long to wait before dialing.
func (m *ConnStateMachine) BeginReconnect() (int, time.Duration) {
	m.mu.Lock()
	attempt := m.status.Attempt + 1
	m.status = ConnStatus{State: StateReconnecting, Attempt: attempt}
	delay := m.backoff.NextBackOff()
	status := m.status
	m.mu.Unlock()
	m.notify(status)
	return attempt, delay
}

// Status returns the current state.
func (m *ConnStateMachine) Status() ConnStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *ConnStateMachine) notify(s ConnStatus) {
	if m.onChange != nil {
		m.onChange(s)
	}
}
