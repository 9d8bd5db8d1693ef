package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput is returned when request data is malformed or missing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated is returned when no valid identity is attached to a request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("admin access required")
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductNotFound is returned when a product is not found.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound is returned when an order is missing or owned by someone else.
	ErrOrderNotFound = errors.New("order not found")
	// ErrEmailTaken is returned when an email already belongs to another user.
	ErrEmailTaken = errors.New("email already in use")
	// ErrProductInUse is returned when deleting a product referenced by orders.
	ErrProductInUse = errors.New("product is referenced by existing orders")
	// ErrInsufficientStock is returned when a product cannot cover a requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidEmail is returned by login when no user has the given email.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrIncorrectPassword is returned when a password does not match the stored hash.
	ErrIncorrectPassword = errors.New("incorrect password")
)

// InvalidInputError carries a caller-facing description of bad input.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrInvalidInput) hold.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InvalidInput builds an InvalidInputError with a formatted message.
func InvalidInput(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError names the product that could not cover an order.
type InsufficientStockError struct {
	ProductID uint
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("insufficient stock for product %q (id %d)", e.Name, e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything unrecognised is
// reported as a generic 500 so storage details never reach the caller.
func MapErrorToHTTP(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	switch {
	case errors.Is(err, ErrInsufficientStock):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INSUFFICIENT_STOCK")
	case errors.Is(err, ErrInvalidInput):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHENTICATED")
	case errors.Is(err, ErrInvalidEmail):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "INVALID_EMAIL")
	case errors.Is(err, ErrIncorrectPassword):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "INCORRECT_PASSWORD")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrProductNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "PRODUCT_NOT_FOUND")
	case errors.Is(err, ErrOrderNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "ORDER_NOT_FOUND")
	case errors.Is(err, ErrEmailTaken):
		return NewHTTPError(http.StatusConflict, err.Error(), "EMAIL_TAKEN")
	case errors.Is(err, ErrProductInUse):
		return NewHTTPError(http.StatusConflict, err.Error(), "PRODUCT_IN_USE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
