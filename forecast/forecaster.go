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

// Package forecast defines the uniform fit/predict boundary between the
// engine and the builtin forecasting models. Models are selected by the
// kind identifier carried in the DAG node and resolved when execution
// starts. Forecast failures are result-level: they flow downstream as an
// explicit unavailable marker and never abort the surrounding query.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tempoql/tempoql/planner"
	"github.com/tempoql/tempoql/types"
)

// Failure modes of a forecast invocation. All are recoverable.
var (
	ErrInsufficientData = errors.New("insufficient data to fit model")
	ErrModelDivergence  = errors.New("model diverged")
	ErrForecastTimeout  = errors.New("forecast cancelled or timed out")
)

// Prediction is one forecast output point.
type Prediction struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	// Confidence is the model's interval half-width; zero when the model
	// carries no interval estimate
	Confidence float64 `json:"confidence,omitempty"`
}

// Result is the outcome of one forecast invocation. Either Points is
// populated or Err marks the forecast unavailable.
type Result struct {
	Model   string            `json:"model"`
	Horizon int               `json:"horizon"`
	Points  []Prediction      `json:"points,omitempty"`
	Err     *types.EngineError `json:"error,omitempty"`
}

// Unavailable reports whether the invocation failed.
func (r Result) Unavailable() bool {
	return r.Err != nil
}

// Model is a fitted handle; Predict returns the next horizon values in
// step order. Predict must be deterministic for a given fit.
type Model interface {
	Predict(horizon int) ([]float64, error)
}

// Forecaster fits a model over the contents of a closed window. Fitting
// the same points with the same params must yield a model whose
// predictions are identical across invocations.
type Forecaster interface {
	Name() string
	Fit(points []types.DataPoint, params map[string]interface{}) (Model, error)
}

// Registry holds the closed set of forecasters by model kind.
type Registry struct {
	mu          sync.RWMutex
	forecasters map[string]Forecaster
}

// NewRegistry returns a registry populated with the builtin models.
func NewRegistry() *Registry {
	r := &Registry{forecasters: make(map[string]Forecaster)}
	r.Register(&NaiveForecaster{})
	r.Register(&MovingAverageForecaster{})
	r.Register(&ExponentialSmoothingForecaster{})
	r.Register(&LinearForecaster{})
	return r
}

// Register adds a forecaster under its own name.
func (r *Registry) Register(f Forecaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forecasters[f.Name()] = f
}

// Get looks up a forecaster by model kind.
func (r *Registry) Get(kind string) (Forecaster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forecasters[kind]
	return f, ok
}

// Kinds returns the registered model kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.forecasters))
	for k := range r.forecasters {
		kinds = append(kinds, k)
	}
	return kinds
}

// Adapter invokes forecasters on window closure and owns the per-node
// fitted model cache used to throttle refits during streaming.
type Adapter struct {
	registry *Registry

	mu     sync.Mutex
	fitted map[string]fittedModel
}

type fittedModel struct {
	model Model
	at    time.Time
}

// NewAdapter builds an adapter over a registry.
func NewAdapter(registry *Registry) *Adapter {
	return &Adapter{
		registry: registry,
		fitted:   make(map[string]fittedModel),
	}
}

// ResolveKind verifies a model kind is registered. Called when execution
// starts so an unknown kind is rejected before any window closes.
func (a *Adapter) ResolveKind(node string, kind string) error {
	if _, ok := a.registry.Get(kind); !ok {
		return types.NewCompileError(node, fmt.Sprintf("unknown forecast model kind %q", kind))
	}
	return nil
}

// Invoke fits the node's model over a closed window and predicts the
// configured horizon. A non-empty MinRetrainInterval reuses the previous
// fit within the interval instead of refitting on every closure. Failures
// are folded into the Result, never returned.
func (a *Adapter) Invoke(ctx context.Context, node string, spec *planner.ForecastSpec, points []types.DataPoint, now time.Time) Result {
	res := Result{Model: spec.ModelKind, Horizon: spec.Horizon}

	if len(points) == 0 {
		res.Err = types.NewForecastError(node, ErrInsufficientData)
		return res
	}

	forecaster, ok := a.registry.Get(spec.ModelKind)
	if !ok {
		res.Err = types.NewForecastError(node, fmt.Errorf("unknown model kind %q", spec.ModelKind))
		return res
	}

	model, err := a.fit(node, forecaster, spec, points, now)
	if err != nil {
		res.Err = types.NewForecastError(node, err)
		return res
	}
	if ctx.Err() != nil {
		res.Err = types.NewForecastError(node, ErrForecastTimeout)
		return res
	}

	values, err := model.Predict(spec.Horizon)
	if err != nil {
		res.Err = types.NewForecastError(node, err)
		return res
	}

	step := stepOf(points)
	last := points[len(points)-1].Timestamp
	res.Points = make([]Prediction, len(values))
	for i, v := range values {
		res.Points[i] = Prediction{
			Timestamp: last.Add(time.Duration(i+1) * step),
			Value:     v,
		}
	}
	return res
}

// FitTrend fits a trend line over a closed window, folding failures into
// the result the way Invoke does.
func (a *Adapter) FitTrend(node string, points []types.DataPoint) TrendResult {
	trend, err := FitTrend(points)
	if err != nil {
		return TrendResult{Err: types.NewForecastError(node, err)}
	}
	return TrendResult{Trend: trend}
}

// fit refits the node's model unless a previous fit is still fresh.
func (a *Adapter) fit(node string, forecaster Forecaster, spec *planner.ForecastSpec, points []types.DataPoint, now time.Time) (Model, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if spec.MinRetrainInterval > 0 {
		if prev, ok := a.fitted[node]; ok && now.Sub(prev.at) < spec.MinRetrainInterval {
			return prev.model, nil
		}
	}

	model, err := forecaster.Fit(points, spec.Params)
	if err != nil {
		return nil, err
	}
	a.fitted[node] = fittedModel{model: model, at: now}
	return model, nil
}

// stepOf infers the prediction timestamp spacing from the mean spacing of
// the fitted window, falling back to one second for degenerate inputs.
func stepOf(points []types.DataPoint) time.Duration {
	if len(points) < 2 {
		return time.Second
	}
	span := points[len(points)-1].Timestamp.Sub(points[0].Timestamp)
	step := span / time.Duration(len(points)-1)
	if step <= 0 {
		return time.Second
	}
	return step
}
