// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serrors provides constructors and tools to work with structured
// errors. A structured error carries a message and a growable bag of
// key/value context, and composes with the standard errors.Is/errors.As
// machinery via Unwrap.
package serrors

import (
	"errors"
	"fmt"
	"strings"
)

// basicError is a structured error with an optional wrapped cause and a
// list of key/value context pairs.
type basicError struct {
	msg    string
	cause  error
	fields []field
}

type field struct {
	key   string
	value interface{}
}

// New creates a new structured error with the given message and optional
// key/value context.
func New(msg string, kvPairs ...interface{}) error {
	return &basicError{msg: msg, fields: toFields(kvPairs)}
}

// Wrap creates a structured error wrapping cause, with an additional
// message and optional key/value context.
func Wrap(msg string, cause error, kvPairs ...interface{}) error {
	if cause == nil {
		return New(msg, kvPairs...)
	}
	return &basicError{msg: msg, cause: cause, fields: toFields(kvPairs)}
}

// WithCtx returns a copy of the first structured error in err's chain
// with additional key/value context attached. If the chain holds no
// structured error, it returns a new structured error whose message is
// err's text; err itself is not kept as its cause.
func WithCtx(err error, kvPairs ...interface{}) error {
	if err == nil {
		return nil
	}
	var be *basicError
	if errors.As(err, &be) {
		return &basicError{msg: be.msg, cause: be.cause, fields: append(append([]field{}, be.fields...), toFields(kvPairs)...)}
	}
	return &basicError{msg: err.Error(), fields: toFields(kvPairs)}
}

func (e *basicError) Error() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, f := range e.fields {
		fmt.Fprintf(&b, ", %s=%v", f.key, f.value)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *basicError) Unwrap() error {
	return e.cause
}

func toFields(kvPairs []interface{}) []field {
	fields := make([]field, 0, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprint(kvPairs[i])
		}
		fields = append(fields, field{key: key, value: kvPairs[i+1]})
	}
	return fields
}

// List is a collection of errors that itself implements error. It is used
// to accumulate multiple independent validation failures (e.g. config
// validation) before reporting them together.
type List []error

func (l List) Error() string {
	msgs := make([]string, 0, len(l))
	for _, err := range l {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ToError returns nil if the list is empty, otherwise returns the list
// itself as an error.
func (l List) ToError() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
