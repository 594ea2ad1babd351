package models

import "time"

// Статусы модерации идеи.
const (
	IdeaPending  = "pending"
	IdeaApproved = "approved"
	IdeaRejected = "rejected"
)

// Idea — идея или проект, отправленный пользователем на модерацию.
type Idea struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	Tags             []string   `json:"tags"`
	Status           string     `json:"status"`
	Feedback         string     `json:"feedback,omitempty"`
	PDF              string     `json:"pdf,omitempty"`
	LearningOutcome  string     `json:"learning_outcome,omitempty"`
	RecommendedLevel string     `json:"recommended_level,omitempty"`
	GitHubLink       string     `json:"github_link,omitempty"`
	WebsiteLink      string     `json:"website_link,omitempty"`
	Version          int        `json:"version,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// IdeaSubmission — тело запроса на создание идеи.
type IdeaSubmission struct {
	Title            string   `json:"title" validate:"required,max=200"`
	Description      string   `json:"description" validate:"required"`
	Category         string   `json:"category" validate:"required"`
	Tags             []string `json:"tags"`
	PDF              string   `json:"pdf,omitempty"`
	LearningOutcome  string   `json:"learning_outcome,omitempty"`
	RecommendedLevel string   `json:"recommended_level,omitempty"`
	GitHubLink       string   `json:"github_link,omitempty" validate:"omitempty,url"`
	WebsiteLink      string   `json:"website_link,omitempty" validate:"omitempty,url"`
}

// IdeaStatusUpdate — решение модератора по идее.
type IdeaStatusUpdate struct {
	Status   string `json:"status" validate:"required,oneof=pending approved rejected"`
	Feedback string `json:"feedback,omitempty"`
}

// PageMetadata — метаданные страницы, которые backend возвращает вместе со списком идей.
type PageMetadata struct {
	CurrentPage  int `json:"current_page"`
	PageSize     int `json:"page_size"`
	FirstPage    int `json:"first_page"`
	LastPage     int `json:"last_page"`
	TotalRecords int `json:"total_records"`
}

// IdeaPage — одна страница списка идей.
type IdeaPage struct {
	Ideas    []Idea       `json:"ideas"`
	Metadata PageMetadata `json:"metadata"`
}

// ProfileWithIdeas — запись каталога сообщества.
type ProfileWithIdeas struct {
	Profile    User   `json:"profile"`
	Ideas      []Idea `json:"ideas"`
	IdeasCount int    `json:"ideas_count,omitempty"`
}

// Directory — страница каталога сообщества.
type Directory struct {
	Profiles []ProfileWithIdeas `json:"profiles"`
	Count    int                `json:"count"`
}
