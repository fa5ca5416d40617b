package xfyun

import (
	"sync"
	"time"
)

// State is the protocol phase of one recognition session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSendingFirst
	StateSendingContinue
	StateSendingLast
	StateAwaitingFinal
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateSendingFirst:
		return "SENDING_FIRST"
	case StateSendingContinue:
		return "SENDING_CONTINUE"
	case StateSendingLast:
		return "SENDING_LAST"
	case StateAwaitingFinal:
		return "AWAITING_FINAL"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// StateChange represents a state transition event.
type StateChange struct {
	From      State
	To        State
	Timestamp time.Time
	Reason    string
}

// StateListener observes session state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(StateChange)

func (f StateListenerFunc) OnStateChange(event StateChange) { f(event) }

var validTransitions = map[State][]State{
	StateIdle:            {StateConnecting, StateDone},
	StateConnecting:      {StateSendingFirst, StateDone},
	StateSendingFirst:    {StateSendingContinue, StateSendingLast, StateDone},
	StateSendingContinue: {StateSendingLast, StateDone},
	StateSendingLast:     {StateAwaitingFinal, StateDone},
	StateAwaitingFinal:   {StateDone},
}

// stateMachine tracks the protocol phase. Done is terminal.
type stateMachine struct {
	mu        sync.RWMutex
	current   State
	listeners []StateListener
}

func newStateMachine(listeners ...StateListener) *stateMachine {
	return &stateMachine{current: StateIdle, listeners: listeners}
}

// State returns the current state.
func (sm *stateMachine) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Done reports whether the session reached its terminal state.
func (sm *stateMachine) Done() bool {
	return sm.State() == StateDone
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (sm *stateMachine) Transition(to State, reason string) error {
	sm.mu.Lock()
	from := sm.current
	if !transitionValid(from, to) {
		sm.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	sm.current = to
	now := time.Now()
	listeners := make([]StateListener, len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	// Listeners run outside the lock so they may query the machine.
	event := StateChange{From: from, To: to, Timestamp: now, Reason: reason}
	for _, l := range listeners {
		l.OnStateChange(event)
	}
	return nil
}

// AddListener registers a listener for state change events.
func (sm *stateMachine) AddListener(listener StateListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
