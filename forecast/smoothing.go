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
	"fmt"

	"github.com/spf13/cast"

	"github.com/tempoql/tempoql/types"
)

const defaultSmoothingAlpha = 0.3

// ExponentialSmoothingForecaster fits a single-exponential-smoothing level
// and predicts it flat across the horizon. The smoothing factor is the
// "alpha" param, in (0, 1].
type ExponentialSmoothingForecaster struct{}

var _ Forecaster = (*ExponentialSmoothingForecaster)(nil)

func (f *ExponentialSmoothingForecaster) Name() string {
	return "exponential_smoothing"
}

func (f *ExponentialSmoothingForecaster) Fit(points []types.DataPoint, params map[string]interface{}) (Model, error) {
	if len(points) == 0 {
		return nil, ErrInsufficientData
	}

	alpha := defaultSmoothingAlpha
	if raw, ok := params["alpha"]; ok {
		alpha = cast.ToFloat64(raw)
	}
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha %v outside (0, 1]", alpha)
	}

	level := points[0].Value
	for _, p := range points[1:] {
		level = alpha*p.Value + (1-alpha)*level
	}
	return constantModel{value: level}, nil
}
