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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tempoql/tempoql/logger"
)

func TestLifecycleHappyPath(t *testing.T) {
	l := NewLifecycle("run-1", logger.NewDiscardLogger())
	assert.Equal(t, StateInit, l.State())

	for _, next := range []State{StateConnecting, StateRunning, StateClosing, StateTerminated} {
		assert.True(t, l.To(next), "to %s", next)
		assert.Equal(t, next, l.State())
	}
}

func TestLifecycleReconnectLoop(t *testing.T) {
	l := NewLifecycle("run-1", logger.NewDiscardLogger())
	l.To(StateConnecting)
	l.To(StateRunning)

	assert.True(t, l.To(StateError))
	assert.True(t, l.To(StateReconnecting))
	assert.True(t, l.To(StateRunning))
	assert.True(t, l.To(StateClosing))
	assert.True(t, l.To(StateTerminated))
}

func TestLifecycleRefusesIllegalMoves(t *testing.T) {
	l := NewLifecycle("run-1", logger.NewDiscardLogger())

	assert.False(t, l.To(StateRunning), "INIT cannot jump to RUNNING")
	assert.Equal(t, StateInit, l.State())

	l.To(StateConnecting)
	l.To(StateRunning)
	l.To(StateClosing)
	l.To(StateTerminated)

	assert.False(t, l.To(StateRunning), "TERMINATED is final")
	assert.Equal(t, StateTerminated, l.State())
}

func TestLifecycleSelfTransitionIsNoop(t *testing.T) {
	l := NewLifecycle("run-1", logger.NewDiscardLogger())
	l.To(StateConnecting)
	assert.True(t, l.To(StateConnecting))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "INIT", StateInit.String())
	assert.Equal(t, "RECONNECTING", StateReconnecting.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
