// Package docs содержит описание API шлюза для swagger.
// Пересобирается командой swag init -g cmd/gateway/main.go.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{.Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Вход по email и паролю",
                "parameters": [
                    {"description": "Учетные данные", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/login.Request"}}
                ],
                "responses": {
                    "200": {"description": "Пользователь и путь для перехода", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Неверные учетные данные", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Ошибка валидации", "schema": {"$ref": "#/definitions/response.Response"}},
                    "429": {"description": "Слишком много запросов", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Backend недоступен", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/auth/signup": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Регистрация",
                "parameters": [
                    {"description": "Данные регистрации", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/signup.Request"}}
                ],
                "responses": {
                    "201": {"description": "Созданная учетная запись", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Ошибка валидации", "schema": {"$ref": "#/definitions/response.Response"}},
                    "429": {"description": "Слишком много запросов", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/auth/activate": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Активация учетной записи",
                "parameters": [
                    {"description": "Токен из письма", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/activate.Request"}}
                ],
                "responses": {
                    "200": {"description": "Активированная учетная запись", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Недействительный токен", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/auth/forgot-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Запрос на сброс пароля",
                "parameters": [
                    {"description": "Email учетной записи", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/password.ForgotRequest"}}
                ],
                "responses": {
                    "200": {"description": "Сообщение backend", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Ошибка валидации", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/auth/reset-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Установка нового пароля",
                "parameters": [
                    {"description": "Токен сброса и новый пароль", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/password.ResetRequest"}}
                ],
                "responses": {
                    "200": {"description": "Сообщение backend", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Недействительный токен", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Ошибка валидации", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Выход",
                "responses": {
                    "200": {"description": "Путь для перехода", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Состояние сессии",
                "responses": {
                    "200": {"description": "Сессия, состояние и стартовое представление", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/profile": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Profile"],
                "summary": "Заполнение профиля при онбординге",
                "parameters": [
                    {"description": "Поля профиля", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UserPatch"}}
                ],
                "responses": {
                    "201": {"description": "Профиль и путь для перехода", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Сессия завершена", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Ошибка валидации", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Profile"],
                "summary": "Изменение профиля",
                "parameters": [
                    {"description": "Изменяемые поля", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UserPatch"}}
                ],
                "responses": {
                    "200": {"description": "Профиль и путь для перехода", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Сессия завершена", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Ошибка валидации", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/ideas": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Ideas"],
                "summary": "Список идей",
                "parameters": [
                    {"type": "integer", "description": "Номер страницы", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Размер страницы, не больше 100", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Страница идей", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Некорректная пагинация", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Ideas"],
                "summary": "Отправка идеи",
                "parameters": [
                    {"description": "Идея", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.IdeaSubmission"}}
                ],
                "responses": {
                    "201": {"description": "Созданная идея", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Ошибка валидации", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/ideas/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Ideas"],
                "summary": "Идея по id",
                "parameters": [
                    {"type": "string", "description": "ID идеи", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Идея", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "Идея не найдена", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Ideas"],
                "summary": "Решение модератора",
                "parameters": [
                    {"type": "string", "description": "ID идеи", "name": "id", "in": "path", "required": true},
                    {"description": "Статус и отзыв", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.IdeaStatusUpdate"}}
                ],
                "responses": {
                    "200": {"description": "Обновленная идея", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Нужна роль администратора", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Ideas"],
                "summary": "Удаление идеи",
                "parameters": [
                    {"type": "string", "description": "ID идеи", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Сообщение backend", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        }
    },
    "definitions": {
        "activate.Request": {
            "type": "object",
            "required": ["token"],
            "properties": {"token": {"type": "string"}}
        },
        "login.Request": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "signup.Request": {
            "type": "object",
            "required": ["email", "password", "username"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "maxLength": 72, "minLength": 8},
                "username": {"type": "string", "maxLength": 50, "minLength": 3}
            }
        },
        "password.ForgotRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {"email": {"type": "string"}}
        },
        "password.ResetRequest": {
            "type": "object",
            "required": ["password", "token"],
            "properties": {
                "password": {"type": "string", "maxLength": 72, "minLength": 8},
                "token": {"type": "string"}
            }
        },
        "models.UserPatch": {
            "type": "object",
            "properties": {
                "username": {"type": "string", "maxLength": 50, "minLength": 3},
                "email": {"type": "string"},
                "firstname": {"type": "string", "maxLength": 100},
                "lastname": {"type": "string", "maxLength": 100},
                "avatar_url": {"type": "string"},
                "bio": {"type": "string", "maxLength": 2000},
                "linkedin": {"type": "string"},
                "github": {"type": "string"},
                "fb": {"type": "string"},
                "skills": {"type": "array", "items": {"type": "string"}},
                "has_completed_profile": {"type": "boolean"}
            }
        },
        "models.IdeaSubmission": {
            "type": "object",
            "required": ["category", "description", "title"],
            "properties": {
                "title": {"type": "string", "maxLength": 200},
                "description": {"type": "string"},
                "category": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "pdf": {"type": "string"},
                "learning_outcome": {"type": "string"},
                "recommended_level": {"type": "string"},
                "github_link": {"type": "string"}
            }
        },
        "models.IdeaStatusUpdate": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["pending", "approved", "rejected"]},
                "feedback": {"type": "string"}
            }
        },
        "response.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "status": {"type": "string"}}
        },
        "response.Response": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"type": "string"},
                "fields": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "kind": {"type": "string"},
                "status": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo содержит общие сведения об API.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "OpenConnect Gateway API",
	Description:      "Сессии браузеров и доступ к представлениям OpenConnect",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
