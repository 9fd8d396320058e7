// Package http serves the receipt and analysis JSON API.
//
// This file implements the builder used by every handler to write the
// response envelope {"status","data","error","code"}.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"resit/internal/claims"
	"resit/internal/core"
	"resit/internal/log"
	"resit/internal/receipts"
	"resit/internal/services"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error codes returned in the envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMIT_EXCEEDED"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL_ERROR"
)

// Response is the JSON envelope of every API response.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ResponseBuilder provides a fluent API for writing enveloped responses.
type ResponseBuilder struct {
	statusCode int
	body       Response
	headers    map[string]string
}

// NewResponse creates a success response with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		body:       Response{Status: StatusSuccess},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the payload.
func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.body.Data = v
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Fail turns the response into an error with a machine readable code.
func (b *ResponseBuilder) Fail(code, message string) *ResponseBuilder {
	b.body.Status = StatusError
	b.body.Code = code
	b.body.Error = message
	return b
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter, r *http.Request) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	render.Status(r, b.statusCode)
	render.JSON(w, r, b.body)
}

// ErrorResponse creates an error response.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Fail(code, message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

// ValidationError creates a 422 Unprocessable Entity error response.
func ValidationError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, CodeValidation, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// InternalServerError creates a 500 error response. The message is generic;
// details stay in the logs.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal server error")
}

var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrInvalidCurrency,
	core.ErrEmptyMerchant,
	core.ErrMerchantTooLong,
	core.ErrFullTextTooLarge,
	core.ErrEmptyTeamName,
	core.ErrTeamNameTooLong,
	core.ErrEmptyTitle,
	core.ErrTitleTooLong,
	core.ErrMissingTeam,
	core.ErrInvalidPriority,
	core.ErrInvalidStatus,
	services.ErrBatchTooLarge,
	services.ErrUnknownTeam,
}

// errorFor maps a service error onto a response: validation 422, not found
// 404, conflict 409, deadline 504, anything else 500.
func errorFor(err error) *ResponseBuilder {
	switch {
	case errors.Is(err, receipts.ErrNotFound):
		return NotFoundError(receipts.ErrNotFound.Error())
	case errors.Is(err, claims.ErrTeamNotFound):
		return NotFoundError(claims.ErrTeamNotFound.Error())
	case errors.Is(err, claims.ErrClaimNotFound):
		return NotFoundError(claims.ErrClaimNotFound.Error())
	case errors.Is(err, core.ErrClaimAlreadyFinal):
		return ErrorResponse(http.StatusConflict, CodeConflict, core.ErrClaimAlreadyFinal.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, CodeTimeout, "request timed out")
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return ValidationError(target.Error())
		}
	}
	return InternalServerError()
}

// writeError logs err at a level matching its status and writes the mapped
// response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorFor(err)
	logger := log.FromContext(r.Context())
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldOperation, op, log.Err(err))
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldOperation, op, log.Err(err))
	}
	resp.Write(w, r)
}
