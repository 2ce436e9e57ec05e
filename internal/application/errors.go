package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeProductsNotFound    = "PRODUCTS_NOT_FOUND"
	ErrCodeSplitShipment       = "SPLIT_SHIPMENT_NOT_SUPPORTED"
	ErrCodePaymentFailed       = "PAYMENT_FAILED"
	ErrCodeIdempotencyInFlight = "IDEMPOTENCY_IN_FLIGHT"
	ErrCodeIdempotencyMismatch = "IDEMPOTENCY_PARAMS_MISMATCH"
	ErrCodeGeocodingFailed     = "GEOCODING_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

func NewValidationError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewProductsNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeProductsNotFound,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
	}
}

func NewSplitShipmentError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeSplitShipment,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewPaymentFailedError(reason string) *ServiceError {
	msg := "payment authorization was declined"
	if reason != "" {
		msg = fmt.Sprintf("payment authorization was declined: %s", reason)
	}
	return &ServiceError{
		Code:       ErrCodePaymentFailed,
		Message:    msg,
		HTTPStatus: http.StatusPaymentRequired,
	}
}

func NewIdempotencyInFlightError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyInFlight,
		Message:    "a request with this idempotency key is already in flight",
		HTTPStatus: http.StatusConflict,
	}
}

func NewIdempotencyMismatchError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyMismatch,
		Message:    "idempotency key reused with different request parameters",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

func NewGeocodingFailedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGeocodingFailed,
		Message:    "could not resolve shipping address",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// Sentinel errors surfaced by repositories.
var (
	ErrIdempotencyKeyExists = errors.New("idempotency key already exists")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientStock    = errors.New("insufficient stock for decrement")

	// ErrTxConflict marks a commit transaction that lost a serialization
	// conflict or deadlock. The caller may retry the whole transaction.
	ErrTxConflict = errors.New("transaction serialization conflict")
)

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

// IsDeterministicClientError reports whether the error is a client failure
// that will recur on an identical retry. Only these outcomes are cached on
// the idempotency record; 5xx results stay retriable.
func IsDeterministicClientError(err error) bool {
	svcErr, ok := IsServiceError(err)
	if !ok {
		return false
	}
	switch svcErr.HTTPStatus {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorBody renders the canonical wire form of an error. The same bytes are
// stored on FAILED idempotency records so replays are byte-identical.
func ErrorBody(err error) (int, []byte) {
	svcErr, ok := IsServiceError(err)
	if !ok {
		svcErr = NewInternalError(err)
	}

	body, marshalErr := json.Marshal(errorBody{
		Error: errorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
		},
	})
	if marshalErr != nil {
		return http.StatusInternalServerError, []byte(`{"error":{"code":"INTERNAL_ERROR","message":"an internal error occurred"}}`)
	}

	return svcErr.HTTPStatus, body
}
