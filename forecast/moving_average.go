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

import (
	"github.com/spf13/cast"

	"github.com/tempoql/tempoql/types"
)

const defaultMovingAverageWindow = 5

// MovingAverageForecaster predicts the mean of the trailing window for
// every horizon step. The trailing window length is the "window" param.
type MovingAverageForecaster struct{}

var _ Forecaster = (*MovingAverageForecaster)(nil)

func (f *MovingAverageForecaster) Name() string {
	return "moving_average"
}

func (f *MovingAverageForecaster) Fit(points []types.DataPoint, params map[string]interface{}) (Model, error) {
	if len(points) == 0 {
		return nil, ErrInsufficientData
	}

	window := defaultMovingAverageWindow
	if raw, ok := params["window"]; ok {
		window = cast.ToInt(raw)
		if window <= 0 {
			window = defaultMovingAverageWindow
		}
	}
	if window > len(points) {
		window = len(points)
	}

	sum := 0.0
	for _, p := range points[len(points)-window:] {
		sum += p.Value
	}
	return constantModel{value: sum / float64(window)}, nil
}
