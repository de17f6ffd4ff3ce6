// Package classroom holds the classroom entities (Class, Enrollment, Assignment, Submission),
// their closed enumerations and state machines, and the repository contracts of their stores.
package classroom

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Classes

type ClassStatus string

const (
	ClassActive   ClassStatus = "active"
	ClassArchived ClassStatus = "archived"
	ClassDraft    ClassStatus = "draft"
)

var classTransitions = map[ClassStatus][]ClassStatus{
	ClassDraft:    {ClassActive, ClassArchived},
	ClassActive:   {ClassArchived},
	ClassArchived: {ClassActive},
}

func (s ClassStatus) IsValid() bool {
	_, ok := classTransitions[s]
	return ok
}

func (s ClassStatus) CanTransitionTo(next ClassStatus) bool {
	return s == next || contains(classTransitions[s], next)
}

type ClassSettings struct {
	AllowStudentsPost    bool `json:"allow_students_post"`
	ShowGrades           bool `json:"show_grades"`
	NotificationsEnabled bool `json:"notifications_enabled"`
}

func DefaultClassSettings() ClassSettings {
	return ClassSettings{AllowStudentsPost: true, ShowGrades: true, NotificationsEnabled: true}
}

type Class struct {
	ID                  string        `json:"id"`
	OwnerID             string        `json:"owner_id"`
	Name                string        `json:"name"`
	Description         string        `json:"description"`
	ClassCode           string        `json:"class_code"`
	InviteCode          string        `json:"invite_code,omitempty"` // "": no invite code
	InviteCodeExpiresAt *time.Time    `json:"invite_code_expires_at,omitempty"`
	Status              ClassStatus   `json:"status"`
	Settings            ClassSettings `json:"settings"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (c Class) IsOwner(userID string) bool { return c.OwnerID == userID }

// InviteCodeValid reports whether code is the current, unexpired invite code of the class.
func (c Class) InviteCodeValid(code string, now time.Time) bool {
	if c.InviteCode == "" || c.InviteCode != code {
		return false
	}
	return c.InviteCodeExpiresAt == nil || now.Before(*c.InviteCodeExpiresAt)
}

// Enrollments

type EnrollmentRole string

const (
	EnrollmentStudent   EnrollmentRole = "student"
	EnrollmentTeacher   EnrollmentRole = "teacher"
	EnrollmentCoTeacher EnrollmentRole = "co-teacher"
)

func (r EnrollmentRole) IsValid() bool {
	switch r {
	case EnrollmentStudent, EnrollmentTeacher, EnrollmentCoTeacher:
		return true
	}
	return false
}

// IsTeaching: teachers and co-teachers manage the class's assignments and submissions.
func (r EnrollmentRole) IsTeaching() bool {
	return r == EnrollmentTeacher || r == EnrollmentCoTeacher
}

type EnrollmentStatus string

const (
	EnrollmentActive   EnrollmentStatus = "active"
	EnrollmentInactive EnrollmentStatus = "inactive"
	EnrollmentPending  EnrollmentStatus = "pending"
)

// inactive is terminal: a removed member needs a new enrollment to come back.
var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPending:  {EnrollmentActive, EnrollmentInactive},
	EnrollmentActive:   {EnrollmentInactive},
	EnrollmentInactive: nil,
}

func (s EnrollmentStatus) IsValid() bool {
	_, ok := enrollmentTransitions[s]
	return ok
}

func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	return s == next || contains(enrollmentTransitions[s], next)
}

type Enrollment struct {
	ID           string           `json:"id"`
	ClassID      string           `json:"class_id"`
	UserID       string           `json:"user_id"`
	Role         EnrollmentRole   `json:"role"`
	Status       EnrollmentStatus `json:"status"`
	JoinedAt     time.Time        `json:"joined_at"`
	LastActivity *time.Time       `json:"last_activity"`
}

func (e Enrollment) IsActive() bool { return e.Status == EnrollmentActive }

// IsActiveStudent: only active student enrollments may submit.
func (e Enrollment) IsActiveStudent() bool {
	return e.IsActive() && e.Role == EnrollmentStudent
}

// IsActiveTeacher: active teacher and co-teacher enrollments manage assignments.
func (e Enrollment) IsActiveTeacher() bool {
	return e.IsActive() && e.Role.IsTeaching()
}

// Assignments

type AssignmentStatus string

const (
	AssignmentDraft     AssignmentStatus = "draft"
	AssignmentPublished AssignmentStatus = "published"
	AssignmentArchived  AssignmentStatus = "archived"
)

// a published assignment may have submissions: it never goes back to draft.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentDraft:     {AssignmentPublished, AssignmentArchived},
	AssignmentPublished: {AssignmentArchived},
	AssignmentArchived:  {AssignmentPublished},
}

func (s AssignmentStatus) IsValid() bool {
	_, ok := assignmentTransitions[s]
	return ok
}

func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	return s == next || contains(assignmentTransitions[s], next)
}

type AssignmentType string

const (
	TypeAssignment AssignmentType = "assignment"
	TypeQuiz       AssignmentType = "quiz"
	TypeMaterial   AssignmentType = "material"
)

func (t AssignmentType) IsValid() bool {
	switch t {
	case TypeAssignment, TypeQuiz, TypeMaterial:
		return true
	}
	return false
}

type AssignmentSettings struct {
	AllowLateSubmissions bool `json:"allow_late_submissions"`
}

const DefaultPoints = 100

type Assignment struct {
	ID          string             `json:"id"`
	ClassID     string             `json:"class_id"`
	CreatedBy   string             `json:"created_by"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        AssignmentType     `json:"type"`
	Status      AssignmentStatus   `json:"status"`
	DueDate     *time.Time         `json:"due_date"`
	Points      int                `json:"points"`
	Settings    AssignmentSettings `json:"settings"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (a Assignment) IsPublished() bool { return a.Status == AssignmentPublished }

func (a Assignment) IsPastDue(now time.Time) bool {
	return a.DueDate != nil && now.After(*a.DueDate)
}

// Submissions

type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionLate      SubmissionStatus = "late"
	SubmissionGraded    SubmissionStatus = "graded"
	SubmissionReturned  SubmissionStatus = "returned"
)

func (s SubmissionStatus) IsValid() bool {
	switch s {
	case SubmissionSubmitted, SubmissionLate, SubmissionGraded, SubmissionReturned:
		return true
	}
	return false
}

const (
	MinGrade = 0
	MaxGrade = 100
)

// ValidGrade reports whether grade is within [MinGrade, MaxGrade]. NaN is not.
func ValidGrade(grade float64) bool {
	return grade >= MinGrade && grade <= MaxGrade
}

type Submission struct {
	ID           string           `json:"id"`
	AssignmentID string           `json:"assignment_id"`
	StudentID    string           `json:"student_id"`
	Content      string           `json:"content"`
	Status       SubmissionStatus `json:"status"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	Grade        *float64         `json:"grade"`
	Feedback     *string          `json:"feedback"`
	GradedBy     *string          `json:"graded_by"`
	GradedAt     *time.Time       `json:"graded_at"`
}

// ApplyGrade moves the Submission to graded, recording grade, feedback, grader and timestamp together.
// It leaves the Submission untouched when grade is out of [MinGrade, MaxGrade].
func (s *Submission) ApplyGrade(grade float64, feedback string, graderID string, at time.Time) error {
	if !ValidGrade(grade) {
		return ErrGradeOutOfRange
	}
	fb := feedback
	gb := graderID
	ga := at
	s.Grade = &grade
	s.Feedback = &fb
	s.GradedBy = &gb
	s.GradedAt = &ga
	s.Status = SubmissionGraded
	return nil
}

// Return hands a graded Submission back to its student.
func (s *Submission) Return() error {
	if s.Status != SubmissionGraded {
		return ErrNotGraded
	}
	s.Status = SubmissionReturned
	return nil
}

// NewTransitionError reports an illegal status change.
func NewTransitionError(from, to interface{}) error {
	msg := fmt.Sprintf("cannot change status from %v to %v", from, to)
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "status", Error: msg})
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
