package models

import (
	"errors"
	"net/http"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// AppError carries the HTTP status and wire code the REST contract requires.
// Plain errors.New errors from validation default to 400 at the handler layer.
type AppError struct {
	Status  int                    `json:"-"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

func (e *AppError) Error() string { return e.Message }

const (
	CodeValidation   = "VALIDATION"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeClosedPeriod = "CLOSED_PERIOD"
	CodePolicyDenied = "POLICY_DENIED"
	CodeUnauthorized = "UNAUTHORIZED"
)

func ErrValidation(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func ErrNotFound(msg string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeConflict, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

// ErrClosedPeriod must short-circuit before any write; the 409 + CLOSED_PERIOD
// code is part of the client contract.
func ErrClosedPeriod() *AppError {
	return &AppError{
		Status:  http.StatusConflict,
		Code:    CodeClosedPeriod,
		Message: "transaction date falls in a closed period",
	}
}

func ErrPolicyDenied(actionKey string, required PolicyLevel, actual PolicyLevel) *AppError {
	return &AppError{
		Status:  http.StatusForbidden,
		Code:    CodePolicyDenied,
		Message: "role policy does not allow this action",
		Meta: map[string]interface{}{
			"action_key":     actionKey,
			"required_level": required.String(),
			"policy_value":   actual.String(),
		},
	}
}

// isDuplicateKeyErr detects MySQL 1062 so unique-constraint races surface as
// business conflicts instead of 500s.
func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
