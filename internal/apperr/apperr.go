// Package apperr описывает единый тип ошибки, в который приводятся все отказы backend.
//
// Ошибка строится один раз на границе с backend (пакет backend) и дальше
// передаётся без изменений: сессии и HTTP-обработчикам не нужно знать о кодах
// HTTP-статусов или форме тела ответа.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind — категория ошибки.
type Kind string

const (
	// KindValidation — backend отклонил входные данные (например, занятый email).
	KindValidation Kind = "validation"
	// KindAuth — неверные учётные данные, недействительный токен активации или сброса.
	KindAuth Kind = "auth"
	// KindSession — bearer-токен истёк или недействителен; сессия должна быть сброшена.
	KindSession Kind = "session"
	// KindNetwork — сбой транспорта или нечитаемый ответ; запрос можно повторить.
	KindNetwork Kind = "network"
)

// Error — нормализованная ошибка.
type Error struct {
	Kind    Kind
	Message string
	// Fields — сообщения валидации по полям, может быть nil.
	Fields map[string][]string
	cause  error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Validation создаёт ошибку валидации.
func Validation(msg string, fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Auth создаёт ошибку аутентификации.
func Auth(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

// Session создаёт ошибку сессии.
func Session(msg string) *Error {
	return &Error{Kind: KindSession, Message: msg}
}

// Network создаёт сетевую ошибку, сохраняя исходную причину для логов.
func Network(msg string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: msg, cause: cause}
}

// From приводит произвольную ошибку к *Error. Всё, что не было
// нормализовано ранее, считается сетевой ошибкой.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Network("unexpected error, please try again", err)
}

// Is сообщает, относится ли err к указанной категории.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsSession сокращает Is(err, KindSession).
func IsSession(err error) bool {
	return Is(err, KindSession)
}
