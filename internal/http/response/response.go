// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Kind — категория ошибки: validation, auth, session или network.
// Поле Fields — ошибки по полям формы (опционально).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string              `json:"status"`
	Error  string              `json:"error,omitempty"`
	Kind   string              `json:"kind,omitempty"`
	Fields map[string][]string `json:"fields,omitempty"`
	Data   any                 `json:"data,omitempty"`
}

// ErrorResponse — структура ответа с ошибкой без данных.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string
	fields := make(map[string][]string, len(errs))

	for _, err := range errs {
		var msg string
		switch err.ActualTag() {
		case "required":
			msg = fmt.Sprintf("field %s is a required field", err.Field())
		case "email":
			msg = fmt.Sprintf("field %s must be a valid email", err.Field())
		case "min":
			msg = fmt.Sprintf("field %s must be at least %s characters long", err.Field(), err.Param())
		case "max":
			msg = fmt.Sprintf("field %s must be at most %s characters long", err.Field(), err.Param())
		case "url":
			msg = fmt.Sprintf("field %s must be a valid url", err.Field())
		case "oneof":
			msg = fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param())
		default:
			msg = fmt.Sprintf("field %s is not a valid", err.Field())
		}
		errsMsgs = append(errsMsgs, msg)
		fields[err.Field()] = append(fields[err.Field()], msg)
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
		Kind:   string(apperr.KindValidation),
		Fields: fields,
	}
}

// StatusFor возвращает HTTP-статус для категории ошибки.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindSession:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

// AppError пишет нормализованную ошибку с подходящим HTTP-статусом.
func AppError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	render.Status(r, StatusFor(e.Kind))
	render.JSON(w, r, Response{
		Status: StatusError,
		Error:  e.Message,
		Kind:   string(e.Kind),
		Fields: e.Fields,
	})
}
