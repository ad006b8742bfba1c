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

package forecast

import "github.com/tempoql/tempoql/types"

// NaiveForecaster predicts the last observed value for every horizon step.
// It is the deterministic baseline every other model is judged against.
type NaiveForecaster struct{}

var _ Forecaster = (*NaiveForecaster)(nil)

func (f *NaiveForecaster) Name() string {
	return "naive"
}

func (f *NaiveForecaster) Fit(points []types.DataPoint, _ map[string]interface{}) (Model, error) {
	if len(points) == 0 {
		return nil, ErrInsufficientData
	}
	return constantModel{value: points[len(points)-1].Value}, nil
}

// constantModel repeats one value across the horizon.
type constantModel struct {
	value float64
}

func (m constantModel) Predict(horizon int) ([]float64, error) {
	values := make([]float64, horizon)
	for i := range values {
		values[i] = m.value
	}
	return values, nil
}
