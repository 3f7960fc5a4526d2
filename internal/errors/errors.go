// Copyright The PRRTE-Go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the closed set of error kinds the planner can
// surface (spec §7) and a PlannerError that carries one of them plus a
// wrapped cause, built with github.com/pkg/errors the way the teacher
// annotates call sites.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the planner's closed set of fatal error kinds.
type Kind string

const (
	// BadParam marks a malformed PPR string, rankfile line, or CPU list.
	BadParam Kind = "BAD_PARAM"
	// NotFound marks a missing resource, e.g. head-node topology in
	// do-not-launch mode.
	NotFound Kind = "NOT_FOUND"
	// ResourceBusy marks a mapper that built a plan no node could accept.
	ResourceBusy Kind = "RESOURCE_BUSY"
	// NoTargets marks an empty target list from the selector.
	NoTargets Kind = "NO_TARGETS"
	// MappingFailed marks that every installed mapper declined, or that
	// the produced plan had zero processes or zero nodes.
	MappingFailed Kind = "MAPPING_FAILED"
	// BindingInfeasible marks a binding request that cannot be honored
	// and for which overload was not permitted.
	BindingInfeasible Kind = "BINDING_INFEASIBLE"
	// Cancelled marks a job cancelled mid-plan.
	Cancelled Kind = "CANCELLED"
)

// PlannerError is the error type returned by fatal planner operations.
type PlannerError struct {
	Kind  Kind
	cause error
}

func (e *PlannerError) Error() string {
	if e.cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *PlannerError) Unwrap() error { return e.cause }

// New creates a PlannerError of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &PlannerError{Kind: kind, cause: pkgerrors.Errorf(format, args...)}
}

// Wrap annotates err with kind and a message, preserving the cause chain.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &PlannerError{Kind: kind, cause: pkgerrors.Wrapf(err, format, args...)}
}

// KindOf returns the Kind carried by err, or "" if err is not (or does
// not wrap) a *PlannerError.
func KindOf(err error) Kind {
	var pe *PlannerError
	for err != nil {
		if p, ok := err.(*PlannerError); ok {
			pe = p
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if pe == nil {
		return ""
	}
	return pe.Kind
}

// Is reports whether err is a PlannerError of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
