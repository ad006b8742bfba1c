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
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tempoql/tempoql/types"
)

// Trend is a fitted linear model over a window's points: value(t) =
// Intercept + Slope * seconds since the window's first point.
type Trend struct {
	// Slope is the change in value per second
	Slope float64 `json:"slope"`
	// Intercept is the fitted value at the first point's timestamp
	Intercept float64 `json:"intercept"`
	// R2 is the coefficient of determination of the fit
	R2 float64 `json:"r2"`
	// Origin anchors the regression's x axis
	Origin time.Time `json:"origin"`
}

// At evaluates the trend line at ts.
func (t Trend) At(ts time.Time) float64 {
	return t.Intercept + t.Slope*ts.Sub(t.Origin).Seconds()
}

// TrendResult is the outcome of fitting a trend line on window closure.
// Either Trend is populated or Err marks the fit unavailable.
type TrendResult struct {
	Trend Trend              `json:"trend"`
	Err   *types.EngineError `json:"error,omitempty"`
}

// Unavailable reports whether the fit failed.
func (r TrendResult) Unavailable() bool {
	return r.Err != nil
}

// FitTrend fits an ordinary least squares line through a window's points.
// Trend nodes fire it directly on window closure; LinearForecaster wraps
// it behind the fit/predict contract.
func FitTrend(points []types.DataPoint) (Trend, error) {
	if len(points) < 2 {
		return Trend{}, ErrInsufficientData
	}

	origin := points[0].Timestamp
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Timestamp.Sub(origin).Seconds()
		ys[i] = p.Value
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return Trend{}, ErrModelDivergence
	}

	return Trend{
		Slope:     slope,
		Intercept: intercept,
		R2:        stat.RSquared(xs, ys, nil, intercept, slope),
		Origin:    origin,
	}, nil
}

// LinearForecaster extrapolates a fitted trend line across the horizon.
type LinearForecaster struct{}

var _ Forecaster = (*LinearForecaster)(nil)

func (f *LinearForecaster) Name() string {
	return "linear"
}

func (f *LinearForecaster) Fit(points []types.DataPoint, _ map[string]interface{}) (Model, error) {
	trend, err := FitTrend(points)
	if err != nil {
		return nil, err
	}
	last := points[len(points)-1].Timestamp
	return &linearModel{
		trend: trend,
		lastX: last.Sub(trend.Origin).Seconds(),
		stepX: stepOf(points).Seconds(),
	}, nil
}

type linearModel struct {
	trend Trend
	lastX float64
	stepX float64
}

func (m *linearModel) Predict(horizon int) ([]float64, error) {
	values := make([]float64, horizon)
	for i := range values {
		x := m.lastX + float64(i+1)*m.stepX
		values[i] = m.trend.Intercept + m.trend.Slope*x
	}
	return values, nil
}
