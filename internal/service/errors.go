package service

import (
	"errors"
	"fmt"
	"time"

	"taskBoard/internal/repository"
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeForbidden        = "FORBIDDEN"
	CodePersistFailed    = "PERSIST_FAILED"
	CodePermissionDenied = "PERMISSION_DENIED"
)

// DenialDismissAfter - через сколько скрывать сообщение об отказе.
const DenialDismissAfter = 3 * time.Second

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(resource, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s не найден(а)", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewForbidden(reason string) *BusinessError {
	return NewBusinessError(CodeForbidden, reason)
}

// NewPermissionDenied - отказ, который показывается пользователю и скрывается сам.
func NewPermissionDenied(reason string) *BusinessError {
	return NewBusinessError(CodePermissionDenied, reason,
		ToDetail("dismiss_after_ms", DenialDismissAfter.Milliseconds()))
}

func NewPersistFailed(err error) *BusinessError {
	busErr := NewBusinessError(CodePersistFailed, "failed to save")
	busErr.Err = err
	return busErr
}

// notFoundOr превращает repository.ErrNotFound в NOT_FOUND, остальное оборачивает.
func notFoundOr(err error, resource, id, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return NewNotFound(resource, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func IsCode(err error, code string) bool {
	var busErr *BusinessError
	return errors.As(err, &busErr) && busErr.Code == code
}
