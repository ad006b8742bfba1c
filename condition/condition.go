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

// Package condition compiles filter predicates once at plan time and
// evaluates them per point. Predicates see the point's value, timestamp,
// stream and tags as top-level variables.
package condition

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Condition is a compiled boolean predicate over a point environment.
type Condition interface {
	Evaluate(env map[string]interface{}) bool
}

// ExprCondition evaluates an expr-lang program.
type ExprCondition struct {
	program *vm.Program
}

// New compiles a predicate expression. Unknown variables are allowed so a
// predicate referencing an absent tag evaluates without a compile failure.
func New(expression string) (Condition, error) {
	program, err := expr.Compile(expression,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}
	return &ExprCondition{program: program}, nil
}

// Evaluate runs the predicate. Evaluation errors count as non-matches:
// a filter never aborts the query over one undecidable point.
func (c *ExprCondition) Evaluate(env map[string]interface{}) bool {
	result, err := expr.Run(c.program, env)
	if err != nil {
		return false
	}
	matched, ok := result.(bool)
	return ok && matched
}
