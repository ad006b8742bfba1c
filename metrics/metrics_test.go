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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "run-1")

	m.PointsIngested.Add(3)
	m.LateDropped.Inc()
	m.OpenWindows.Set(2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.PointsIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LateDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpenWindows))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestDistinctRunsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "run-a")
	b := New(reg, "run-b")

	a.WindowsClosed.Inc()
	b.WindowsClosed.Add(5)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.WindowsClosed))
	assert.Equal(t, 5.0, testutil.ToFloat64(b.WindowsClosed))
}

func TestNilRegistryStillCounts(t *testing.T) {
	m := New(nil, "run-x")
	m.BufferDropped.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BufferDropped))
}
