// Package sl содержит вспомогательные функции для работы с логгером slog:
// единообразные атрибуты для ошибок, операций и сессий.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to fetch profile", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает атрибут с именем операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// Scope возвращает атрибут с идентификатором сессии браузера.
func Scope(id string) slog.Attr {
	return slog.String("scope", id)
}
