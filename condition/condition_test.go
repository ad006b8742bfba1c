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

package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCondition(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{"simple comparison", "value > 18", false},
		{"boolean combination", "value > 10 && sensor == 's1'", false},
		{"tag reference", "region == 'eu' || value < 0", false},
		{"unbalanced parens", "(value > 10", true},
		{"empty expression", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := New(tt.expression)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cond)
		})
	}
}

func TestEvaluate(t *testing.T) {
	cond, err := New("value >= 20 && sensor == 's1'")
	require.NoError(t, err)

	assert.True(t, cond.Evaluate(map[string]interface{}{"value": 25.0, "sensor": "s1"}))
	assert.False(t, cond.Evaluate(map[string]interface{}{"value": 5.0, "sensor": "s1"}))
	assert.False(t, cond.Evaluate(map[string]interface{}{"value": 25.0, "sensor": "s2"}))
}

func TestEvaluateMissingVariable(t *testing.T) {
	cond, err := New("missing_tag == 'x'")
	require.NoError(t, err)

	// Absent variables must not abort evaluation; they simply do not match.
	assert.False(t, cond.Evaluate(map[string]interface{}{"value": 1.0}))
}
