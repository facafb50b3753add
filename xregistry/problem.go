// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package xregistry

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind names an xRegistry error condition. Kinds map one-to-one onto
// HTTP status codes.
type ErrorKind string

// The error kinds used by the gateway.
const (
	ErrInvalidData   ErrorKind = "invalid_data"
	ErrUnauthorized  ErrorKind = "unauthorized"
	ErrNotAcceptable ErrorKind = "not_acceptable"
	ErrNotFound      ErrorKind = "not_found"
	ErrBadGateway    ErrorKind = "bad_gateway"
	ErrServerError   ErrorKind = "server_error"
)

var errorStatus = map[ErrorKind]int{
	ErrInvalidData:   http.StatusBadRequest,
	ErrUnauthorized:  http.StatusUnauthorized,
	ErrNotAcceptable: http.StatusNotAcceptable,
	ErrNotFound:      http.StatusNotFound,
	ErrBadGateway:    http.StatusBadGateway,
	ErrServerError:   http.StatusInternalServerError,
}

var errorTitle = map[ErrorKind]string{
	ErrInvalidData:   "Invalid data",
	ErrUnauthorized:  "Unauthorized",
	ErrNotAcceptable: "Not acceptable",
	ErrNotFound:      "Not found",
	ErrBadGateway:    "Bad gateway",
	ErrServerError:   "Internal server error",
}

// Problem is an RFC-7807 problem document carrying an xRegistry error kind.
// Problem implements error so handlers can return one directly.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Instance string `json:"instance"`
	Detail   string `json:"detail,omitempty"`
	Data     any    `json:"data,omitempty"`

	kind ErrorKind
}

// NewProblem creates a problem document of the given kind. instance is the
// request path the problem occurred on.
func NewProblem(kind ErrorKind, instance, detail string) *Problem {
	status, ok := errorStatus[kind]
	if !ok {
		kind, status = ErrServerError, http.StatusInternalServerError
	}
	return &Problem{
		Type:     fmt.Sprintf("https://github.com/xregistry/spec/blob/main/core/spec.md#%s", kind),
		Title:    errorTitle[kind],
		Status:   status,
		Instance: instance,
		Detail:   detail,
		kind:     kind,
	}
}

// Kind returns the problem's error kind.
func (p *Problem) Kind() ErrorKind { return p.kind }

func (p *Problem) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.kind, p.Detail)
	}
	return string(p.kind)
}

// WriteProblem serializes the problem document with the xRegistry content
// type.
func WriteProblem(w http.ResponseWriter, p *Problem) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		// The status line is already on the wire, nothing to recover.
		return
	}
}

// AsProblem converts any handler error into a problem document. Errors that
// are not problems already are reported as upstream failures.
func AsProblem(err error, instance string) *Problem {
	if p, ok := err.(*Problem); ok {
		if p.Instance == "" {
			p.Instance = instance
		}
		return p
	}
	return NewProblem(ErrBadGateway, instance, err.Error())
}
