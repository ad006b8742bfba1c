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

// Package window assigns incoming points to window instances and decides
// closure. Window state is owned exclusively by the execution unit driving
// the operator; the Manager is therefore not safe for concurrent use and
// must not be shared across executors without partitioning by window key.
package window

import (
	"sort"
	"time"

	"github.com/tempoql/tempoql/planner"
	"github.com/tempoql/tempoql/types"
)

// ManagerOptions configures a window Manager.
type ManagerOptions struct {
	// Bindings are the downstream aggregates maintained per instance
	Bindings []AggregateBinding
	// MaxPoints bounds buffered state per instance; zero means unbounded
	MaxPoints int
	// OverflowPolicy applies when MaxPoints is exceeded
	OverflowPolicy types.WindowOverflowPolicy
	// LatePolicy applies to points whose windows have all closed
	LatePolicy types.LatePolicy
	// OnLate receives diverted late points under LateSideOutput
	OnLate func(types.DataPoint, *types.EngineError)
	// OnOverflow observes non-fatal evictions; overflow is never silent
	OnOverflow func(*types.EngineError)
}

// Manager creates, tracks and closes the window instances of one Window
// operator.
type Manager struct {
	node *planner.Node
	opts ManagerOptions

	assigner Assigner
	gap      time.Duration

	// instances holds time-aligned (tumbling/sliding) windows by slot hash
	instances map[uint64]*Instance
	// sessions holds gap-based windows by stream identity; session slots
	// grow as activity extends them
	sessions map[string][]*Instance

	// closedThrough is the highest watermark closure has run at; slots
	// ending at or before it are gone and must never be rebuilt
	closedThrough time.Time

	// stats
	assigned    int64
	lateDropped int64
	closedCount int64
}

// NewManager builds a Manager for a validated Window node.
func NewManager(node *planner.Node, opts ManagerOptions) *Manager {
	m := &Manager{
		node:      node,
		opts:      opts,
		instances: make(map[uint64]*Instance),
		sessions:  make(map[string][]*Instance),
	}
	switch node.Window.Kind {
	case planner.WindowTumbling:
		m.assigner = TumblingAssigner{Size: node.Window.Size}
	case planner.WindowSliding:
		m.assigner = SlidingAssigner{Size: node.Window.Size, Slide: node.Window.Slide}
	case planner.WindowSession:
		m.gap = node.Window.Gap
	}
	return m
}

// Add routes a point to every open window it belongs to. A point whose
// windows have all closed is diverted per the late-data policy and never
// mutates a closed aggregate. The returned error is fatal (window overflow
// under the fail policy).
func (m *Manager) Add(p types.DataPoint, watermark time.Time) error {
	if watermark.Before(m.closedThrough) {
		watermark = m.closedThrough
	}
	if m.gap > 0 {
		return m.addSession(p, watermark)
	}

	slots := m.assigner.Assign(p.Timestamp)
	open := slots[:0]
	for _, slot := range slots {
		if slot.End.After(watermark) {
			open = append(open, slot)
		}
	}
	if len(open) == 0 {
		m.divertLate(p, slots[len(slots)-1])
		return nil
	}

	for _, slot := range open {
		inst, ok := m.instances[slot.Hash()]
		if !ok {
			var err error
			inst, err = newInstance(m.node.ID, slot, m.opts.Bindings)
			if err != nil {
				return err
			}
			m.instances[slot.Hash()] = inst
		}
		if err := m.boundedAdd(inst, p); err != nil {
			return err
		}
	}
	m.assigned++
	return nil
}

// addSession extends an open session covering the point or opens a new one.
func (m *Manager) addSession(p types.DataPoint, watermark time.Time) error {
	for _, s := range m.sessions[p.StreamID] {
		if !p.Timestamp.Before(s.slot.Start) && p.Timestamp.Before(s.slot.End) {
			if err := m.boundedAdd(s, p); err != nil {
				return err
			}
			// Activity extends the session by one gap past the newest point.
			if end := s.lastActive.Add(m.gap); end.After(s.slot.End) {
				s.slot.End = end
			}
			m.assigned++
			return nil
		}
	}

	slot := types.NewTimeSlot(p.Timestamp, p.Timestamp.Add(m.gap))
	if !slot.End.After(watermark) {
		// Every session this point could have opened or extended is closed.
		m.divertLate(p, slot)
		return nil
	}
	inst, err := newInstance(m.node.ID, slot, m.opts.Bindings)
	if err != nil {
		return err
	}
	if err := m.boundedAdd(inst, p); err != nil {
		return err
	}
	m.sessions[p.StreamID] = append(m.sessions[p.StreamID], inst)
	m.assigned++
	return nil
}

// boundedAdd enforces the per-window memory bound before adding. Overflow
// either evicts the oldest point (signalled, never silent) or is fatal.
func (m *Manager) boundedAdd(inst *Instance, p types.DataPoint) error {
	if m.opts.MaxPoints > 0 && inst.Len() >= m.opts.MaxPoints {
		overflowErr := types.NewWindowOverflowError(m.node.ID, inst.slot, m.opts.MaxPoints)
		if m.opts.OverflowPolicy == types.WindowFail {
			return overflowErr
		}
		if err := inst.evictOldest(); err != nil {
			return err
		}
		if m.opts.OnOverflow != nil {
			m.opts.OnOverflow(overflowErr)
		}
	}
	inst.add(p)
	return nil
}

// divertLate applies the late-data policy: drop with a metric, or hand the
// point to the side output. The query continues either way.
func (m *Manager) divertLate(p types.DataPoint, slot types.TimeSlot) {
	m.lateDropped++
	if m.opts.LatePolicy == types.LateSideOutput && m.opts.OnLate != nil {
		m.opts.OnLate(p, types.NewLateDataError(m.node.ID, slot, p.Timestamp))
	}
}

// OnWatermark closes every instance whose end the watermark has passed and
// returns the finalized windows in ascending end-time order. Closed
// instances are discarded; they can never be mutated again.
func (m *Manager) OnWatermark(watermark time.Time) []Closed {
	var closed []Closed
	if watermark.After(m.closedThrough) {
		m.closedThrough = watermark
	}

	for hash, inst := range m.instances {
		if !inst.slot.End.After(watermark) {
			closed = append(closed, inst.finalize(false))
			delete(m.instances, hash)
		}
	}

	for stream, sessions := range m.sessions {
		remaining := sessions[:0]
		for _, s := range sessions {
			// A session closes when no point arrived within the gap
			// relative to the watermark.
			if !s.slot.End.After(watermark) {
				closed = append(closed, s.finalize(false))
			} else {
				remaining = append(remaining, s)
			}
		}
		if len(remaining) == 0 {
			delete(m.sessions, stream)
		} else {
			m.sessions[stream] = remaining
		}
	}

	sortClosed(closed)
	m.closedCount += int64(len(closed))
	return closed
}

// CloseAll finalizes every open instance in ascending end-time order:
// end-of-batch closure, or a cancellation flush when partial is true.
func (m *Manager) CloseAll(partial bool) []Closed {
	var closed []Closed
	for hash, inst := range m.instances {
		closed = append(closed, inst.finalize(partial))
		delete(m.instances, hash)
	}
	for stream, sessions := range m.sessions {
		for _, s := range sessions {
			closed = append(closed, s.finalize(partial))
		}
		delete(m.sessions, stream)
	}
	sortClosed(closed)
	m.closedCount += int64(len(closed))
	return closed
}

// Discard drops every open instance without emission.
func (m *Manager) Discard() int {
	n := len(m.instances)
	m.instances = make(map[uint64]*Instance)
	for _, sessions := range m.sessions {
		n += len(sessions)
	}
	m.sessions = make(map[string][]*Instance)
	return n
}

// OpenWindows returns the number of currently open instances.
func (m *Manager) OpenWindows() int {
	n := len(m.instances)
	for _, sessions := range m.sessions {
		n += len(sessions)
	}
	return n
}

// Node returns the window operator this manager drives.
func (m *Manager) Node() *planner.Node {
	return m.node
}

// Stats returns runtime counters.
func (m *Manager) Stats() map[string]int64 {
	return map[string]int64{
		"assigned":    m.assigned,
		"lateDropped": m.lateDropped,
		"closed":      m.closedCount,
		"open":        int64(m.OpenWindows()),
	}
}

func sortClosed(closed []Closed) {
	sort.Slice(closed, func(i, j int) bool {
		if !closed[i].Slot.End.Equal(closed[j].Slot.End) {
			return closed[i].Slot.End.Before(closed[j].Slot.End)
		}
		return closed[i].Slot.Start.Before(closed[j].Slot.Start)
	})
}
