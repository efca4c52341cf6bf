package task

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Task is an immutable to-do record keyed by ID.
type Task struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"isCompleted"`
}

// New creates an active task with a fresh id.
func New(title, description string) Task {
	return Task{ID: uuid.NewString(), Title: title, Description: description}
}

// EnsureID returns t with a generated id when it has none. An existing id is kept.
func (t Task) EnsureID() Task {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return t
}

// Complete returns a copy of t marked as completed.
func (t Task) Complete() Task {
	t.Completed = true
	return t
}

// Activate returns a copy of t marked as active.
func (t Task) Activate() Task {
	t.Completed = false
	return t
}

// Active reports whether the task is still open.
func (t Task) Active() bool {
	return !t.Completed
}

// TitleForList returns the title, or the description when the title is empty.
func (t Task) TitleForList() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Description
}

// Empty reports whether both title and description are blank.
func (t Task) Empty() bool {
	return t.Title == "" && t.Description == ""
}

// Validate checks the task has an id. Empty title and description are allowed.
func (t Task) Validate() error {
	return validate.Struct(t)
}

// Equal compares all fields.
func (t Task) Equal(other Task) bool {
	return t == other
}
