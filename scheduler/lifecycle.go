/*
 * Copyright 2025 The TempoQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scheduler

import (
	"sync/atomic"

	"github.com/tempoql/tempoql/logger"
)

// State is a stage of a query's lifecycle.
type State int32

const (
	StateInit State = iota
	StateConnecting
	StateRunning
	StateError
	StateReconnecting
	StateClosing
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateRunning:
		return "RUNNING"
	case StateError:
		return "ERROR"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosing:
		return "CLOSING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// transitions is the set of legal lifecycle moves.
var transitions = map[State][]State{
	StateInit:         {StateConnecting, StateClosing},
	StateConnecting:   {StateRunning, StateError, StateClosing},
	StateRunning:      {StateError, StateClosing},
	StateError:        {StateReconnecting, StateClosing},
	StateReconnecting: {StateRunning, StateError, StateClosing},
	StateClosing:      {StateTerminated},
	StateTerminated:   {},
}

// Lifecycle tracks the state of one query run. Transitions are validated;
// an illegal move is refused and logged, never applied.
type Lifecycle struct {
	run   string
	state atomic.Int32
	log   logger.Logger
}

// NewLifecycle starts a lifecycle in INIT.
func NewLifecycle(run string, log logger.Logger) *Lifecycle {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Lifecycle{run: run, log: log}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// To attempts a transition, returning whether it was applied.
func (l *Lifecycle) To(next State) bool {
	for {
		current := State(l.state.Load())
		if current == next {
			return true
		}
		if !legal(current, next) {
			l.log.Warn("query %s: illegal transition %s -> %s", l.run, current, next)
			return false
		}
		if l.state.CompareAndSwap(int32(current), int32(next)) {
			l.log.Debug("query %s: %s -> %s", l.run, current, next)
			return true
		}
	}
}

func legal(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
