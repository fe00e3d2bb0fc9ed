/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"fmt"
)

// ValidationError rejects an operation whose preconditions do not hold.
// Nothing was mutated.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Reason) }

// LookupError reports a name or id that does not resolve. Callers treat it
// as a no-op.
type LookupError struct {
	Kind string // "template", "layout", "scene", "panel", "character", "bubble"
	Name string
}

func (e *LookupError) Error() string { return fmt.Sprintf("unknown %s %q", e.Kind, e.Name) }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsLookup(err error) bool {
	var l *LookupError
	return errors.As(err, &l)
}

func invalid(op, reason string) error { return &ValidationError{Op: op, Reason: reason} }

func missing(kind string, name any) error { return &LookupError{Kind: kind, Name: fmt.Sprint(name)} }
