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
	"fmt"
	"time"
)

// DataPoint is a single observation flowing through the engine.
// Points within a stream are logically ordered by timestamp but may arrive
// out of order at the ingestion boundary.
type DataPoint struct {
	// Timestamp is the event time of the observation
	Timestamp time.Time
	// Value is the observed measurement
	Value float64
	// Tags carries optional dimension labels
	Tags map[string]string
	// StreamID identifies the originating stream, used for watermark tracking
	StreamID string
}

// Env returns the point as an expression-evaluation environment.
// Tag values are exposed at the top level alongside value/timestamp so
// filter predicates can reference them directly.
func (p DataPoint) Env() map[string]interface{} {
	env := make(map[string]interface{}, len(p.Tags)+3)
	for k, v := range p.Tags {
		env[k] = v
	}
	env["value"] = p.Value
	env["timestamp"] = p.Timestamp
	env["stream"] = p.StreamID
	return env
}

// TimeRange is a concrete half-open interval [Start, End) with a fixed
// resolution unit. Ranges reaching the engine are always fully resolved;
// the engine never sees natural-language date expressions.
type TimeRange struct {
	Start time.Time
	End   time.Time
	// Unit is the resolution the range was resolved at
	Unit time.Duration
}

// Contains reports whether t falls inside the half-open interval.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns the span of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Validate checks the range is well formed.
func (r TimeRange) Validate() error {
	if !r.Start.Before(r.End) {
		return fmt.Errorf("invalid time range: start %v must be before end %v", r.Start, r.End)
	}
	return nil
}
