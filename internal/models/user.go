// Package models содержит доменные модели клиента OpenConnect: профиль пользователя,
// частичные обновления профиля, идеи и сохранённые учётные данные.
// Данными владеет backend, шлюз только кэширует их в рамках сессии.
package models

import (
	"strings"
	"time"
)

// UserTypeAdmin — значение user_type у администраторов.
const UserTypeAdmin = "admin"

// User представляет профиль пользователя в том виде, в каком его отдаёт backend.
type User struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	UserType            string     `json:"user_type,omitempty"`
	FirstName           string     `json:"firstname,omitempty"`
	LastName            string     `json:"lastname,omitempty"`
	Year                string     `json:"year,omitempty"`
	Avatar              string     `json:"avatar,omitempty"`
	AvatarURL           string     `json:"avatar_url,omitempty"`
	Title               string     `json:"title,omitempty"`
	Bio                 string     `json:"bio,omitempty"`
	Faculty             string     `json:"faculty,omitempty"`
	Program             string     `json:"program,omitempty"`
	Degree              string     `json:"degree,omitempty"`
	University          string     `json:"uni,omitempty"`
	Mobile              string     `json:"mobile,omitempty"`
	LinkedIn            string     `json:"linkedin,omitempty"`
	GitHub              string     `json:"github,omitempty"`
	Facebook            string     `json:"fb,omitempty"`
	Skills              []string   `json:"skills,omitempty"`
	HasCompletedProfile bool       `json:"has_completed_profile"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// IsAdmin сообщает, есть ли у пользователя роль администратора.
func (u *User) IsAdmin() bool {
	return u != nil && u.UserType == UserTypeAdmin
}

// DisplayName возвращает "имя фамилия" или username, если имя не заполнено.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Clone возвращает глубокую копию профиля.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Skills != nil {
		c.Skills = append([]string(nil), u.Skills...)
	}
	return &c
}

// UserPatch — частичный профиль. nil-поле означает "значение не передано".
// Используется и как тело запроса на обновление, и как ответ backend,
// который может вернуть только изменённые поля.
type UserPatch struct {
	ID                  *string    `json:"id,omitempty"`
	Username            *string    `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Email               *string    `json:"email,omitempty" validate:"omitempty,email"`
	UserType            *string    `json:"user_type,omitempty"`
	FirstName           *string    `json:"firstname,omitempty" validate:"omitempty,max=100"`
	LastName            *string    `json:"lastname,omitempty" validate:"omitempty,max=100"`
	Year                *string    `json:"year,omitempty"`
	Avatar              *string    `json:"avatar,omitempty"`
	AvatarURL           *string    `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Title               *string    `json:"title,omitempty"`
	Bio                 *string    `json:"bio,omitempty" validate:"omitempty,max=2000"`
	Faculty             *string    `json:"faculty,omitempty"`
	Program             *string    `json:"program,omitempty"`
	Degree              *string    `json:"degree,omitempty"`
	University          *string    `json:"uni,omitempty"`
	Mobile              *string    `json:"mobile,omitempty"`
	LinkedIn            *string    `json:"linkedin,omitempty" validate:"omitempty,url"`
	GitHub              *string    `json:"github,omitempty" validate:"omitempty,url"`
	Facebook            *string    `json:"fb,omitempty" validate:"omitempty,url"`
	Skills              *[]string  `json:"skills,omitempty"`
	HasCompletedProfile *bool      `json:"has_completed_profile,omitempty"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// Merge накладывает patch поверх base: переданные поля перезаписываются,
// отсутствующие сохраняются. base не изменяется. Если base == nil,
// результат строится только из patch.
func Merge(base *User, patch UserPatch) *User {
	out := base.Clone()
	if out == nil {
		out = &User{}
	}
	setString(&out.ID, patch.ID)
	setString(&out.Username, patch.Username)
	setString(&out.Email, patch.Email)
	setString(&out.UserType, patch.UserType)
	setString(&out.FirstName, patch.FirstName)
	setString(&out.LastName, patch.LastName)
	setString(&out.Year, patch.Year)
	setString(&out.Avatar, patch.Avatar)
	setString(&out.AvatarURL, patch.AvatarURL)
	setString(&out.Title, patch.Title)
	setString(&out.Bio, patch.Bio)
	setString(&out.Faculty, patch.Faculty)
	setString(&out.Program, patch.Program)
	setString(&out.Degree, patch.Degree)
	setString(&out.University, patch.University)
	setString(&out.Mobile, patch.Mobile)
	setString(&out.LinkedIn, patch.LinkedIn)
	setString(&out.GitHub, patch.GitHub)
	setString(&out.Facebook, patch.Facebook)
	if patch.Skills != nil {
		out.Skills = append([]string(nil), (*patch.Skills)...)
	}
	if patch.HasCompletedProfile != nil {
		out.HasCompletedProfile = *patch.HasCompletedProfile
	}
	if patch.CreatedAt != nil {
		out.CreatedAt = patch.CreatedAt
	}
	if patch.UpdatedAt != nil {
		out.UpdatedAt = patch.UpdatedAt
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
