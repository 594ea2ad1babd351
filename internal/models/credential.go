package models

import "time"

// Credential — сохранённый bearer-токен и момент его истечения.
type Credential struct {
	Token  string
	Expiry time.Time
}

// Expired сообщает, наступил ли момент истечения относительно now.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.After(now)
}

// AuthenticationToken — токен в формате ответа backend.
type AuthenticationToken struct {
	Token  string `json:"token"`
	Expiry string `json:"expiry"`
}

// SignInResult — результат обмена логина и пароля на токен.
// User заполнен, только если backend встроил профиль в ответ.
type SignInResult struct {
	Credential Credential
	User       *User
}

// SignUpRequest — данные для регистрации.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Credentials — логин и пароль.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Типы событий жизненного цикла сессии.
const (
	EventLogin          = "login"
	EventOAuthLogin     = "oauth_login"
	EventSignup         = "signup"
	EventLogout         = "logout"
	EventProfileUpdated = "profile_updated"
)

// SessionEvent — событие жизненного цикла сессии для внешних подписчиков.
type SessionEvent struct {
	Type   string    `json:"type"`
	Scope  string    `json:"scope"`
	UserID string    `json:"user_id,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}
