package model

import "time"

// ClassSession is a class students join with its access code.
type ClassSession struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	AccessCode  string          `json:"access_code"`
	CreatedAt   time.Time       `json:"created_at"`
	Weeks       map[string]Week `json:"weeks,omitempty"`
}

// AssignID implements store.Identifiable.
func (c *ClassSession) AssignID(id string) { c.ID = id }

// Week groups the items published for one week of a class.
type Week struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	Items       map[string]WeekItem `json:"items,omitempty"`
}

// AssignID implements store.Identifiable.
func (w *Week) AssignID(id string) { w.ID = id }

// ItemType distinguishes reading material from quizzes.
type ItemType string

const (
	ItemTypeMaterial ItemType = "material"
	ItemTypeQuiz     ItemType = "quiz"
)

// DetailLevel controls the verbosity of AI feedback.
type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailDetailed DetailLevel = "detailed"
)

// WeekItem is a material or a quiz inside a week. Quiz-only fields are empty
// for materials and are never written for them.
type WeekItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	PreviewText string    `json:"preview_text,omitempty"`
	Type        ItemType  `json:"type"`
	CreatedAt   time.Time `json:"created_at"`

	DurationMinutes int         `json:"duration_minutes,omitempty"`
	AICorrection    bool        `json:"ai_correction,omitempty"`
	DetailLevel     DetailLevel `json:"detail_level,omitempty"`

	Questions map[string]Question           `json:"questions,omitempty"`
	Results   map[string]QuizResult         `json:"results,omitempty"`
	Comments  map[string]map[string]Comment `json:"comments,omitempty"`
}

// AssignID implements store.Identifiable.
func (i *WeekItem) AssignID(id string) { i.ID = id }

// IsQuiz reports whether the item is a timed quiz.
func (i *WeekItem) IsQuiz() bool { return i.Type == ItemTypeQuiz }

// ItemRef addresses one item in the class/week/item hierarchy.
type ItemRef struct {
	ClassID string `json:"class_id"`
	WeekID  string `json:"week_id"`
	ItemID  string `json:"item_id"`
}

// CreateClassRequest is the payload for creating a new class.
type CreateClassRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=120"`
	Description string `json:"description" binding:"max=1000"`
}

// JoinClassRequest is the payload a student sends to join a class.
type JoinClassRequest struct {
	AccessCode string `json:"access_code" binding:"required,min=1,max=20"`
}

// CreateWeekRequest is the payload for adding a week to a class.
type CreateWeekRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=120"`
	Description string `json:"description" binding:"max=1000"`
}

// CreateItemRequest is the payload for adding a material or quiz to a week.
type CreateItemRequest struct {
	Title           string      `json:"title" binding:"required,min=1,max=200"`
	Content         string      `json:"content" binding:"max=20000"`
	PreviewText     string      `json:"preview_text" binding:"max=300"`
	Type            ItemType    `json:"type" binding:"required,oneof=material quiz"`
	DurationMinutes int         `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	AICorrection    bool        `json:"ai_correction"`
	DetailLevel     DetailLevel `json:"detail_level" binding:"omitempty,oneof=brief detailed"`
}

// UpdateItemRequest carries the item fields an administrator may change.
// Nil fields are left untouched.
type UpdateItemRequest struct {
	Title           *string      `json:"title" binding:"omitempty,min=1,max=200"`
	Content         *string      `json:"content" binding:"omitempty,max=20000"`
	PreviewText     *string      `json:"preview_text" binding:"omitempty,max=300"`
	DurationMinutes *int         `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	AICorrection    *bool        `json:"ai_correction"`
	DetailLevel     *DetailLevel `json:"detail_level" binding:"omitempty,oneof=brief detailed"`
}
