// Package assignment is the Assignment Catalog and Submission Ledger service:
// assignment lifecycle, the submit gate and grading.
package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

// NewAssignment contains information needed to create a new Assignment.
// Status defaults to draft, DueDate to now + the configured delta and Points to classroom.DefaultPoints.
type NewAssignment struct {
	ClassID     string                        `json:"class_id" validate:"required"`
	Title       string                        `json:"title" validate:"required,max=255"`
	Description string                        `json:"description" validate:"max=10000"`
	Type        classroom.AssignmentType      `json:"type" validate:"omitempty,enum"`
	Status      classroom.AssignmentStatus    `json:"status" validate:"omitempty,oneof=draft published"`
	DueDate     *time.Time                    `json:"due_date"`
	Points      *int                          `json:"points" validate:"omitempty,min=0,max=1000"`
	Settings    *classroom.AssignmentSettings `json:"settings"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.ClassID = core.CleanString(na.ClassID)
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
type UpdateAssignment struct {
	Title       *string                       `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string                       `json:"description" validate:"omitempty,max=10000"`
	Type        *classroom.AssignmentType     `json:"type" validate:"omitempty,enum"`
	Status      *classroom.AssignmentStatus   `json:"status" validate:"omitempty,enum"`
	DueDate     *time.Time                    `json:"due_date"`
	Points      *int                          `json:"points" validate:"omitempty,min=0,max=1000"`
	Settings    *classroom.AssignmentSettings `json:"settings"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		title := core.CleanString(*ua.Title)
		ua.Title = &title
	}
	if ua.Description != nil {
		desc := core.CleanString(*ua.Description)
		ua.Description = &desc
	}
	return validate.Struct(ua)
}

type SubmitAssignment struct {
	Content string `json:"content" validate:"max=100000"`
}

func (sa *SubmitAssignment) Validate(validate *validator.Validate) error {
	sa.Content = core.CleanString(sa.Content)
	return validate.Struct(sa)
}

type GradeSubmission struct {
	Grade    *float64 `json:"grade" validate:"required"`
	Feedback string   `json:"feedback" validate:"max=10000"`
}

// Validate rejects a missing or out of range grade.
func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	if err := validate.Struct(gs); err != nil {
		return err
	}
	if !classroom.ValidGrade(*gs.Grade) {
		return classroom.ErrGradeOutOfRange
	}
	return nil
}

// StudentSubmission is a Submission along with its student.
type StudentSubmission struct {
	classroom.Submission
	Student *user.User `json:"student,omitempty"`
}

type AssignmentSummary struct {
	ID      string                     `json:"id"`
	ClassID string                     `json:"class_id"`
	Title   string                     `json:"title"`
	Status  classroom.AssignmentStatus `json:"status"`
	DueDate *time.Time                 `json:"due_date"`
	Points  int                        `json:"points"`
}

// MySubmission is a Submission of the caller along with its assignment.
type MySubmission struct {
	classroom.Submission
	Assignment *AssignmentSummary `json:"assignment,omitempty"`
}
