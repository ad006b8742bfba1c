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

package window

import (
	"sync"
	"time"
)

// streamClock tracks progress of one ingestion stream.
type streamClock struct {
	maxEventTime time.Time
	lastSeen     time.Time
}

// Tracker derives the query watermark from per-stream event-time progress:
// watermark = min(stream max event time) - lateness. Each stream's
// contribution is monotonic (its maximum observed event time), so the
// slowest stream always bounds closure and out-of-order points never
// regress the watermark.
//
// Streams are registered up front; the watermark holds until every
// registered stream has produced a point, timed out idle, or been removed.
// Streams silent for longer than the idle timeout are excluded from the
// minimum so one stalled source cannot hold every window open. AdvanceIdle,
// driven by the scheduler's periodic tick, performs that exclusion on
// processing time; once every producing stream has gone idle the watermark
// advances to the newest event time seen.
type Tracker struct {
	lateness    time.Duration
	idleTimeout time.Duration

	mu      sync.Mutex
	streams map[string]*streamClock
	current time.Time
}

// NewTracker creates a watermark tracker for the given lateness tolerance.
// idleTimeout zero disables idle-stream detection.
func NewTracker(lateness, idleTimeout time.Duration) *Tracker {
	return &Tracker{
		lateness:    lateness,
		idleTimeout: idleTimeout,
		streams:     make(map[string]*streamClock),
	}
}

// Register declares a stream before any of its points arrive. The watermark
// holds until every registered stream has produced, gone idle, or been
// removed; without registration a fast stream observed first would advance
// the watermark past a slower stream's earliest points.
func (t *Tracker) Register(streamID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.streams[streamID]; !ok {
		t.streams[streamID] = &streamClock{lastSeen: now}
	}
}

// Observe records an event time for a stream and returns the (possibly
// advanced) watermark. now is the processing time of the observation.
func (t *Tracker) Observe(streamID string, eventTime, now time.Time) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	clock, ok := t.streams[streamID]
	if !ok {
		clock = &streamClock{}
		t.streams[streamID] = clock
	}
	clock.lastSeen = now
	if eventTime.After(clock.maxEventTime) {
		clock.maxEventTime = eventTime
	}
	return t.recompute(now)
}

// AdvanceIdle re-derives the watermark on a time-driven tick, letting idle
// streams drop out of the minimum so windows close even absent new points.
func (t *Tracker) AdvanceIdle(now time.Time) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recompute(now)
}

// Remove drops a terminated stream from watermark computation.
func (t *Tracker) Remove(streamID string, now time.Time) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streams, streamID)
	return t.recompute(now)
}

// recompute derives the watermark; callers hold the lock.
func (t *Tracker) recompute(now time.Time) time.Time {
	var min, max time.Time
	active := 0
	observed := 0
	for _, clock := range t.streams {
		idle := t.idleTimeout > 0 && now.Sub(clock.lastSeen) > t.idleTimeout
		if clock.maxEventTime.IsZero() {
			if !idle {
				// A registered stream that has not produced yet holds
				// the watermark; closing now could orphan its data.
				return t.current
			}
			continue
		}
		observed++
		if max.IsZero() || clock.maxEventTime.After(max) {
			max = clock.maxEventTime
		}
		if idle {
			continue
		}
		active++
		if min.IsZero() || clock.maxEventTime.Before(min) {
			min = clock.maxEventTime
		}
	}

	switch {
	case active > 0:
		t.current = min.Add(-t.lateness)
	case observed > 0:
		// Every producing stream has gone idle; nothing more is expected,
		// so the newest event time seen releases all closable windows.
		t.current = max
	}
	return t.current
}

// Current returns the watermark without observing anything.
func (t *Tracker) Current() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// IsLate reports whether a point with the given event time arrives behind
// the watermark.
func (t *Tracker) IsLate(eventTime time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.current.IsZero() && eventTime.Before(t.current)
}
