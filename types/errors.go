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

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies engine errors. Errors local to one stream or one
// window never halt unrelated streams or windows in the same DAG unless
// the kind is fatal.
type ErrorKind int

const (
	// KindCompile marks a malformed DAG rejected before execution
	KindCompile ErrorKind = iota
	// KindSourceUnavailable marks a retryable ingestion failure
	KindSourceUnavailable
	// KindLateDataDropped marks a point diverted from a closed window
	KindLateDataDropped
	// KindWindowOverflow marks window state exceeding its memory bound
	KindWindowOverflow
	// KindForecast marks a recoverable forecasting failure
	KindForecast
	// KindBackpressureTimeout marks a producer blocked past its timeout
	KindBackpressureTimeout
)

// String returns the kind name used in logs and error text.
func (k ErrorKind) String() string {
	switch k {
	case KindCompile:
		return "COMPILE_ERROR"
	case KindSourceUnavailable:
		return "SOURCE_UNAVAILABLE"
	case KindLateDataDropped:
		return "LATE_DATA_DROPPED"
	case KindWindowOverflow:
		return "WINDOW_OVERFLOW"
	case KindForecast:
		return "FORECAST_ERROR"
	case KindBackpressureTimeout:
		return "BACKPRESSURE_TIMEOUT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// EngineError is a structured error describing kind, offending node or
// window, and timestamp context.
type EngineError struct {
	Kind      ErrorKind
	Node      string
	Slot      *TimeSlot
	Timestamp time.Time
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Message))
	if e.Node != "" {
		builder.WriteString(fmt.Sprintf(" (node %s)", e.Node))
	}
	if e.Slot != nil {
		builder.WriteString(fmt.Sprintf(" (window %s)", e.Slot))
	}
	if !e.Timestamp.IsZero() {
		builder.WriteString(fmt.Sprintf(" at %s", e.Timestamp.Format(time.RFC3339Nano)))
	}
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error halts the affected query. Non-fatal
// errors are recorded and the query continues.
func (e *EngineError) Fatal() bool {
	switch e.Kind {
	case KindCompile:
		return true
	case KindLateDataDropped, KindForecast:
		return false
	default:
		// SourceUnavailable, WindowOverflow and BackpressureTimeout are
		// fatal only after their policy is exhausted; callers decide.
		return false
	}
}

// NewCompileError reports a DAG that failed the pre-execution sanity check.
func NewCompileError(node, message string) *EngineError {
	return &EngineError{Kind: KindCompile, Node: node, Message: message}
}

// NewSourceUnavailableError reports an ingestion failure for one stream.
func NewSourceUnavailableError(streamID string, err error) *EngineError {
	return &EngineError{Kind: KindSourceUnavailable, Node: streamID, Message: "source unavailable", Err: err}
}

// NewLateDataError reports a point arriving for an already closed window.
func NewLateDataError(node string, slot TimeSlot, ts time.Time) *EngineError {
	s := slot
	return &EngineError{Kind: KindLateDataDropped, Node: node, Slot: &s, Timestamp: ts, Message: "late point diverted"}
}

// NewWindowOverflowError reports window state exceeding its memory bound.
func NewWindowOverflowError(node string, slot TimeSlot, limit int) *EngineError {
	s := slot
	return &EngineError{Kind: KindWindowOverflow, Node: node, Slot: &s,
		Message: fmt.Sprintf("window state exceeds %d points", limit)}
}

// NewForecastError reports a recoverable forecasting failure.
func NewForecastError(node string, err error) *EngineError {
	return &EngineError{Kind: KindForecast, Node: node, Message: "forecast unavailable", Err: err}
}

// NewBackpressureError reports a producer blocked past its timeout.
func NewBackpressureError(streamID string, timeout time.Duration) *EngineError {
	return &EngineError{Kind: KindBackpressureTimeout, Node: streamID,
		Message: fmt.Sprintf("buffer full after blocking %s", timeout)}
}

// AsEngineError extracts an EngineError from an error chain.
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
