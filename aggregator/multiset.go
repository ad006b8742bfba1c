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

package aggregator

import (
	"fmt"
	"sort"
)

// Multiset is an order-statistics structure over float64 values supporting
// insert and retract. Values are kept sorted, so lookups and rank queries
// are O(log n); insert and retract shift at most n elements. Results are
// permutation-stable: the same multiset contents yield the same statistics
// regardless of arrival order.
type Multiset struct {
	values []float64
}

// NewMultiset creates an empty multiset.
func NewMultiset() *Multiset {
	return &Multiset{values: make([]float64, 0, 16)}
}

// Insert adds a value, keeping the backing slice sorted.
func (m *Multiset) Insert(v float64) {
	i := sort.SearchFloat64s(m.values, v)
	m.values = append(m.values, 0)
	copy(m.values[i+1:], m.values[i:])
	m.values[i] = v
}

// Retract removes one occurrence of a previously inserted value. Retracting
// a value that was never inserted is a caller bug and returns an error.
func (m *Multiset) Retract(v float64) error {
	i := sort.SearchFloat64s(m.values, v)
	if i >= len(m.values) || m.values[i] != v {
		return fmt.Errorf("retract of absent value %v", v)
	}
	m.values = append(m.values[:i], m.values[i+1:]...)
	return nil
}

// Len returns the number of stored values.
func (m *Multiset) Len() int {
	return len(m.values)
}

// Min returns the smallest value; ok is false when empty.
func (m *Multiset) Min() (float64, bool) {
	if len(m.values) == 0 {
		return 0, false
	}
	return m.values[0], true
}

// Max returns the largest value; ok is false when empty.
func (m *Multiset) Max() (float64, bool) {
	if len(m.values) == 0 {
		return 0, false
	}
	return m.values[len(m.values)-1], true
}

// Quantile returns the p-quantile (0 <= p <= 1) by rank, matching a sorted
// full rescan: index = p * (n-1), truncated.
func (m *Multiset) Quantile(p float64) (float64, bool) {
	if len(m.values) == 0 {
		return 0, false
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	index := int(p * float64(len(m.values)-1))
	return m.values[index], true
}
