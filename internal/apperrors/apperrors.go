package apperrors

import (
	"errors"
	"fmt"
)

// Code classifica um erro de domínio para mapeamento em status HTTP
type Code string

const (
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	CodeParticipantNotFound  Code = "PARTICIPANT_NOT_FOUND"
	CodeKeyNotFound          Code = "KEY_NOT_FOUND"
	CodeInvalidTarget        Code = "INVALID_TARGET"
	CodeAlreadyContacts      Code = "ALREADY_CONTACTS"
	CodeRequestAlreadySent   Code = "REQUEST_ALREADY_SENT"
	CodeReciprocalPending    Code = "RECIPROCAL_PENDING"
	CodeNotFound             Code = "NOT_FOUND"
	CodeAlreadyExists        Code = "ALREADY_EXISTS"
	CodeCryptoUnavailable    Code = "CRYPTO_UNAVAILABLE"
	CodeUnwrapFailed         Code = "UNWRAP_FAILED"
	CodeInternal             Code = "INTERNAL"
)

// AppError carrega o código da taxonomia junto com a mensagem voltada
// ao cliente. Cause nunca vai para o JSON de resposta.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is permite errors.Is entre duas instâncias com o mesmo código
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf extrai o código de um erro (CodeInternal se não for AppError)
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
