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

// Package aggregator maintains associative running statistics so each new
// point is an O(1) or O(log n) update, never a full rescan. Every function
// supports retraction: removing a point's contribution symmetrically to how
// it was added, which sliding windows and state eviction rely on.
package aggregator

import (
	"fmt"
	"math"
	"sync"
)

// AggregateType identifies a builtin incremental aggregate.
type AggregateType string

const (
	Sum        AggregateType = "sum"
	Count      AggregateType = "count"
	Avg        AggregateType = "avg"
	Min        AggregateType = "min"
	Max        AggregateType = "max"
	StdDev     AggregateType = "stddev"
	Median     AggregateType = "median"
	Percentile AggregateType = "percentile"
)

// Function is an incremental aggregate over float64 samples.
// Add and Retract must be symmetric: after Add(v); Retract(v) the state
// equals the state before the pair, within floating tolerance.
type Function interface {
	Add(v float64)
	Retract(v float64) error
	Result() float64
}

// SumFunction keeps a running sum.
type SumFunction struct {
	sum float64
}

func (f *SumFunction) Add(v float64)           { f.sum += v }
func (f *SumFunction) Retract(v float64) error { f.sum -= v; return nil }
func (f *SumFunction) Result() float64         { return f.sum }

// CountFunction keeps a running count.
type CountFunction struct {
	n int64
}

func (f *CountFunction) Add(_ float64) { f.n++ }
func (f *CountFunction) Retract(_ float64) error {
	if f.n == 0 {
		return fmt.Errorf("retract on empty count")
	}
	f.n--
	return nil
}
func (f *CountFunction) Result() float64 { return float64(f.n) }

// AvgFunction keeps running sum and count.
type AvgFunction struct {
	sum float64
	n   int64
}

func (f *AvgFunction) Add(v float64) {
	f.sum += v
	f.n++
}

func (f *AvgFunction) Retract(v float64) error {
	if f.n == 0 {
		return fmt.Errorf("retract on empty avg")
	}
	f.sum -= v
	f.n--
	return nil
}

func (f *AvgFunction) Result() float64 {
	if f.n == 0 {
		return 0
	}
	return f.sum / float64(f.n)
}

// MinFunction tracks the running minimum over an order-statistics multiset,
// so retraction of an expiring extremum exposes the next candidate.
type MinFunction struct {
	set *Multiset
}

func (f *MinFunction) Add(v float64)           { f.set.Insert(v) }
func (f *MinFunction) Retract(v float64) error { return f.set.Retract(v) }
func (f *MinFunction) Result() float64 {
	v, ok := f.set.Min()
	if !ok {
		return 0
	}
	return v
}

// MaxFunction tracks the running maximum over an order-statistics multiset.
type MaxFunction struct {
	set *Multiset
}

func (f *MaxFunction) Add(v float64)           { f.set.Insert(v) }
func (f *MaxFunction) Retract(v float64) error { return f.set.Retract(v) }
func (f *MaxFunction) Result() float64 {
	v, ok := f.set.Max()
	if !ok {
		return 0
	}
	return v
}

// StdDevFunction keeps running sum and sum of squares for the sample
// standard deviation. Both moments retract symmetrically.
type StdDevFunction struct {
	n     int64
	sum   float64
	sumSq float64
}

func (f *StdDevFunction) Add(v float64) {
	f.n++
	f.sum += v
	f.sumSq += v * v
}

func (f *StdDevFunction) Retract(v float64) error {
	if f.n == 0 {
		return fmt.Errorf("retract on empty stddev")
	}
	f.n--
	f.sum -= v
	f.sumSq -= v * v
	return nil
}

func (f *StdDevFunction) Result() float64 {
	if f.n < 2 {
		return 0
	}
	n := float64(f.n)
	variance := (f.sumSq - f.sum*f.sum/n) / (n - 1)
	if variance < 0 {
		// Floating cancellation can push the variance slightly negative.
		variance = 0
	}
	return math.Sqrt(variance)
}

// MedianFunction reads the 0.5 quantile from an order-statistics multiset.
type MedianFunction struct {
	set *Multiset
}

func (f *MedianFunction) Add(v float64)           { f.set.Insert(v) }
func (f *MedianFunction) Retract(v float64) error { return f.set.Retract(v) }
func (f *MedianFunction) Result() float64 {
	v, ok := f.set.Quantile(0.5)
	if !ok {
		return 0
	}
	return v
}

// PercentileFunction reads a configurable quantile from an order-statistics
// multiset.
type PercentileFunction struct {
	set *Multiset
	p   float64
}

func (f *PercentileFunction) Add(v float64)           { f.set.Insert(v) }
func (f *PercentileFunction) Retract(v float64) error { return f.set.Retract(v) }
func (f *PercentileFunction) Result() float64 {
	v, ok := f.set.Quantile(f.p)
	if !ok {
		return 0
	}
	return v
}

var (
	registry      = make(map[AggregateType]func(percentile float64) Function)
	registryMutex sync.RWMutex
)

// Register adds a custom aggregate constructor to the global registry,
// overriding a builtin of the same name.
func Register(name AggregateType, constructor func(percentile float64) Function) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registry[name] = constructor
}

// Create builds a fresh incremental function for the given type. The
// percentile argument is only consulted for Percentile.
func Create(aggType AggregateType, percentile float64) (Function, error) {
	registryMutex.RLock()
	constructor, exists := registry[aggType]
	registryMutex.RUnlock()
	if exists {
		return constructor(percentile), nil
	}

	switch aggType {
	case Sum:
		return &SumFunction{}, nil
	case Count:
		return &CountFunction{}, nil
	case Avg:
		return &AvgFunction{}, nil
	case Min:
		return &MinFunction{set: NewMultiset()}, nil
	case Max:
		return &MaxFunction{set: NewMultiset()}, nil
	case StdDev:
		return &StdDevFunction{}, nil
	case Median:
		return &MedianFunction{set: NewMultiset()}, nil
	case Percentile:
		if percentile <= 0 || percentile >= 1 {
			return nil, fmt.Errorf("percentile must be in (0, 1), got %v", percentile)
		}
		return &PercentileFunction{set: NewMultiset(), p: percentile}, nil
	default:
		return nil, fmt.Errorf("unsupported aggregate type: %s", aggType)
	}
}
