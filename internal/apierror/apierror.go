/*
Copyright 2024 The Metamist Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrInvalidFilter    ErrorCode = "INVALID_FILTER"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrDisallowedField  ErrorCode = "DISALLOWED_FIELD"
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrInternalServer   ErrorCode = "INTERNAL_SERVER_ERROR"
)

// internalMessage is the only text an internal error ever carries to a caller.
const internalMessage = "an internal error occurred"

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.WithField("code", code).Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewInvalidFilter reports a malformed filter construction. Always a caller bug.
func NewInvalidFilter(format string, args ...interface{}) APIError {
	return NewAPIError(ErrInvalidFilter, fmt.Sprintf(format, args...), nil)
}

func NewMissingParameter(format string, args ...interface{}) APIError {
	return NewAPIError(ErrMissingParameter, fmt.Sprintf(format, args...), nil)
}

func NewInvalidParameter(format string, args ...interface{}) APIError {
	return NewAPIError(ErrInvalidParameter, fmt.Sprintf(format, args...), nil)
}

func NewDisallowedField(format string, args ...interface{}) APIError {
	return NewAPIError(ErrDisallowedField, fmt.Sprintf(format, args...), nil)
}

// NewInternal logs the detail and returns an error that only carries a generic message.
func NewInternal(format string, args ...interface{}) APIError {
	logrus.WithField("code", ErrInternalServer).Errorf(format, args...)
	return APIError{
		Code:    ErrInternalServer,
		Message: internalMessage,
	}
}

// IsCode reports whether err, or anything it wraps, is an APIError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrInvalidFilter, ErrMissingParameter, ErrInvalidParameter, ErrDisallowedField:
			return http.StatusBadRequest
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
