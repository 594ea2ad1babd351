// Package jwt извлекает срок действия из bearer-токенов backend.
//
// Подпись не проверяется: шлюз не знает ключа backend и использует
// claim "exp" только для планирования выхода из сессии. Проверку токена
// выполняет сам backend при каждом запросе.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry возвращает момент истечения из claim "exp".
func Expiry(token string) (time.Time, error) {
	const op = "jwt.Expiry"
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%s: token has no exp claim", op)
	}
	return claims.ExpiresAt.Time, nil
}

// ExpiryOr возвращает срок из токена, а если его нельзя прочитать
// (непрозрачный токен, нет exp) — now + fallback.
func ExpiryOr(token string, now time.Time, fallback time.Duration) time.Time {
	if at, err := Expiry(token); err == nil {
		return at
	}
	return now.Add(fallback)
}
