// Package class is the Class Registry and Enrollment Ledger service:
// class lifecycle, invite codes and class membership.
package class

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name        string                   `json:"name" validate:"required,max=100"`
	Description string                   `json:"description" validate:"max=2000"`
	Status      classroom.ClassStatus    `json:"status" validate:"omitempty,enum"`
	Settings    *classroom.ClassSettings `json:"settings"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
// The owner and the class code never change.
type UpdateClass struct {
	Name        *string                  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string                  `json:"description" validate:"omitempty,max=2000"`
	Status      *classroom.ClassStatus   `json:"status" validate:"omitempty,enum"`
	Settings    *classroom.ClassSettings `json:"settings"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		uc.Name = &name
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

type JoinClass struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

func (jc *JoinClass) Validate(validate *validator.Validate) error {
	jc.InviteCode = strings.ToUpper(core.CleanString(jc.InviteCode))
	return validate.Struct(jc)
}

// NewMember is used by a class manager to enroll a User directly.
type NewMember struct {
	UserID string                     `json:"user_id" validate:"required"`
	Role   classroom.EnrollmentRole   `json:"role" validate:"required,enum"`
	Status classroom.EnrollmentStatus `json:"status" validate:"omitempty,oneof=active pending"`
}

func (nm *NewMember) Validate(validate *validator.Validate) error {
	nm.UserID = core.CleanString(nm.UserID)
	return validate.Struct(nm)
}

type UpdateMember struct {
	Role   *classroom.EnrollmentRole   `json:"role" validate:"omitempty,enum"`
	Status *classroom.EnrollmentStatus `json:"status" validate:"omitempty,enum"`
}

func (um *UpdateMember) Validate(validate *validator.Validate) error {
	return validate.Struct(um)
}

// Member is an Enrollment along with its User.
type Member struct {
	classroom.Enrollment
	User *user.User `json:"user,omitempty"`
}

type Stats struct {
	Students    int `json:"students"`
	Teachers    int `json:"teachers"`
	Assignments int `json:"assignments"`
}

// Details is a Class with its member stats and the caller's relation to it.
type Details struct {
	classroom.Class
	Stats    Stats  `json:"stats"`
	Relation string `json:"relation"`
}

// Access is what the authorization policy needs to know about a caller and a Class.
type Access struct {
	Class      classroom.Class
	Enrollment *classroom.Enrollment // nil: the caller is not enrolled
}
