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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSlotContains(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)
	slot := NewTimeSlot(start, end)

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"at start boundary", start, true},
		{"inside", start.Add(time.Minute), true},
		{"at end boundary", end, false},
		{"before start", start.Add(-time.Nanosecond), false},
		{"after end", end.Add(time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slot.Contains(tt.ts))
		})
	}
}

func TestTimeSlotHash(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	a := NewTimeSlot(start, start.Add(time.Minute))
	b := NewTimeSlot(start, start.Add(time.Minute))
	c := NewTimeSlot(start, start.Add(2*time.Minute))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestTimeRangeValidate(t *testing.T) {
	now := time.Now()
	valid := TimeRange{Start: now, End: now.Add(time.Hour), Unit: time.Minute}
	require.NoError(t, valid.Validate())
	assert.Equal(t, time.Hour, valid.Duration())

	inverted := TimeRange{Start: now.Add(time.Hour), End: now}
	assert.Error(t, inverted.Validate())

	empty := TimeRange{Start: now, End: now}
	assert.Error(t, empty.Validate())
}

func TestDataPointEnv(t *testing.T) {
	ts := time.Now()
	p := DataPoint{
		Timestamp: ts,
		Value:     42.5,
		Tags:      map[string]string{"sensor": "s1"},
		StreamID:  "metrics",
	}

	env := p.Env()
	assert.Equal(t, 42.5, env["value"])
	assert.Equal(t, ts, env["timestamp"])
	assert.Equal(t, "s1", env["sensor"])
	assert.Equal(t, "metrics", env["stream"])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"low latency preset", func(c *Config) { *c = LowLatencyConfig() }, false},
		{"lossless preset", func(c *Config) { *c = LosslessConfig() }, false},
		{"zero buffer capacity", func(c *Config) { c.BufferCapacity = 0 }, true},
		{"bad overflow policy", func(c *Config) { c.OverflowPolicy = "explode" }, true},
		{"bad late policy", func(c *Config) { c.LatePolicy = "merge" }, true},
		{"negative lateness", func(c *Config) { c.LatenessTolerance = -time.Second }, true},
		{"zero tick interval", func(c *Config) { c.TickInterval = 0 }, true},
		{"zero workers", func(c *Config) { c.WorkerPoolSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngineErrorFormatting(t *testing.T) {
	slot := NewTimeSlot(time.Unix(0, 0).UTC(), time.Unix(60, 0).UTC())
	err := NewLateDataError("w1", slot, time.Unix(30, 0).UTC())

	msg := err.Error()
	assert.Contains(t, msg, "LATE_DATA_DROPPED")
	assert.Contains(t, msg, "node w1")
	assert.Contains(t, msg, "window")
	assert.False(t, err.Fatal())
}

func TestEngineErrorFatality(t *testing.T) {
	assert.True(t, NewCompileError("n1", "cycle detected").Fatal())
	assert.False(t, NewForecastError("f1", nil).Fatal())
	assert.False(t, NewWindowOverflowError("w1", TimeSlot{}, 10).Fatal())
}

func TestAsEngineError(t *testing.T) {
	inner := NewCompileError("n1", "dangling input")
	ee, ok := AsEngineError(inner)
	require.True(t, ok)
	assert.Equal(t, KindCompile, ee.Kind)

	_, ok = AsEngineError(assert.AnError)
	assert.False(t, ok)
}
