package models

import "time"

// Language enumerates the runtimes a session can target.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageCPP        Language = "cpp"
	LanguageGo         Language = "go"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageJavaScript, LanguageJava, LanguageCPP, LanguageGo:
		return true
	}
	return false
}

// Session is the canonical server-held record of one collaborative
// editing session. Code is last-writer-wins; UpdatedAt is bumped on
// every mutation and never moves backwards.
type Session struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Language         Language      `json:"language"`
	Code             string        `json:"code"`
	CreatedBy        string        `json:"created_by"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	ParticipantCount int           `json:"participant_count"`
	Participants     []Participant `json:"participants"`
}

// SessionSummary is the directory projection of a Session: no code
// payload, no participant detail.
type SessionSummary struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Language         Language  `json:"language"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ParticipantCount int       `json:"participant_count"`
}

// Participant records a user who has joined (viewed) a session.
// Membership is advisory: nothing removes a participant on disconnect.
type Participant struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

// SessionUpdate carries a partial overwrite of mutable session fields.
// Nil fields are left untouched; present fields replace whatever is
// stored, unconditionally.
type SessionUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Language    *Language `json:"language,omitempty"`
	Code        *string   `json:"code,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u SessionUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Language == nil && u.Code == nil
}
