package service

import (
	"errors"
	"fmt"
)

const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodePersistenceFailed  = "PERSISTENCE_FAILED"
	CodeDataCorrupted      = "DATA_CORRUPTED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

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
	BusErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		BusErr.Details[detail.Key] = detail.Payload
	}

	return BusErr
}

// NewNotFound - запись не найдена или уже завершена; это обычный результат "без эффекта"
func NewNotFound(id, reason string) *BusinessError {
	return NewBusinessError(CodeNotFound, fmt.Sprintf("Todo with ID '%s' not found", id),
		ToDetail("id", id),
		ToDetail("reason", reason),
	)
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation, fmt.Sprintf("invalid value of field '%s': %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

// NewPersistenceError - изменение не записано на диск, операция считается неуспешной
func NewPersistenceError(operation string, err error) *BusinessError {
	BusErr := NewBusinessError(CodePersistenceFailed, "failed to save todos", ToDetail("operation", operation))
	BusErr.Err = err
	return BusErr
}

func NewCorruptionError(err error) *BusinessError {
	BusErr := NewBusinessError(CodeDataCorrupted, "todo file is corrupted")
	BusErr.Err = err
	return BusErr
}

func NewStorageUnavailable(err error) *BusinessError {
	BusErr := NewBusinessError(CodeStorageUnavailable, "failed to load todos")
	BusErr.Err = err
	return BusErr
}

// CodeOf возвращает код бизнес-ошибки или пустую строку
func CodeOf(err error) string {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}
