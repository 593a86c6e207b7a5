// Copyright 2026 The optdriver Authors
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

// Package opterr defines the error kinds surfaced by the optimization driver.
//
// Every error produced by the driver, the dataset helpers, and the problem
// definition is an *Error carrying one Kind. Callers test for a kind with
// errors.Is against the exported sentinels:
//
//	if errors.Is(err, opterr.ErrValidation) { ... }
package opterr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a driver error.
type Kind int

const (
	// Unknown is used for errors that did not originate in the driver.
	Unknown Kind = iota
	// Configuration reports a driver that cannot run as configured, for
	// example Run without an evaluation cap or conflicting constructor input.
	Configuration
	// Validation reports input that does not match the problem definition,
	// a sequential-order violation, or a non-dense index.
	Validation
	// OutputValidation reports strict-mode evaluation output that is missing
	// or not numeric. The whole batch is discarded.
	OutputValidation
	// Shape reports list-valued outputs that cannot be exploded together.
	Shape
	// Serialization reports a document that cannot be produced, parsed or
	// written to its dump target.
	Serialization
)

var kindNames = map[Kind]string{
	Unknown:          "unknown error",
	Configuration:    "configuration error",
	Validation:       "validation error",
	OutputValidation: "output validation error",
	Shape:            "shape error",
	Serialization:    "serialization error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is.
var (
	ErrConfiguration    = &Error{Kind: Configuration}
	ErrValidation       = &Error{Kind: Validation}
	ErrOutputValidation = &Error{Kind: OutputValidation}
	ErrShape            = &Error{Kind: Shape}
	ErrSerialization    = &Error{Kind: Serialization}
)

// Error is a classified driver error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Kind.String() + ": " + e.Message
	case e.Message == "":
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Configurationf returns a Configuration error.
func Configurationf(format string, args ...interface{}) error {
	return newf(Configuration, format, args...)
}

// Validationf returns a Validation error.
func Validationf(format string, args ...interface{}) error {
	return newf(Validation, format, args...)
}

// OutputValidationf returns an OutputValidation error.
func OutputValidationf(format string, args ...interface{}) error {
	return newf(OutputValidation, format, args...)
}

// Shapef returns a Shape error.
func Shapef(format string, args ...interface{}) error {
	return newf(Shape, format, args...)
}

// Serializationf returns a Serialization error.
func Serializationf(format string, args ...interface{}) error {
	return newf(Serialization, format, args...)
}

// Wrap classifies err under kind k with an additional message. A nil err
// yields nil.
func Wrap(k Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

var kindCodes = map[Kind]codes.Code{
	Configuration:    codes.FailedPrecondition,
	Validation:       codes.InvalidArgument,
	OutputValidation: codes.Aborted,
	Shape:            codes.OutOfRange,
	Serialization:    codes.Internal,
}

// Code maps err to the grpc code used when the error crosses a transport.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if c, ok := kindCodes[KindOf(err)]; ok {
		return c
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Unknown
}

// ToStatus converts err into a grpc status error, keeping its kind in the code.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && KindOf(err) == Unknown {
		return err
	}
	return status.Error(Code(err), err.Error())
}

// FromStatus reverses ToStatus: a status whose code maps to a driver kind is
// returned as an *Error of that kind, anything else is returned unchanged.
func FromStatus(err error) error {
	s, ok := status.FromError(err)
	if !ok || s.Code() == codes.OK {
		return err
	}
	for k, c := range kindCodes {
		if c == s.Code() {
			return &Error{Kind: k, Message: "remote", Err: errors.New(s.Message())}
		}
	}
	return err
}
