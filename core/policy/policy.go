// Package policy decides whether a caller may act on a class and its assignments and submissions.
// It is pure: callers load the Class and the caller's Enrollment (if any) and pass them in.
package policy

import (
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

// Relation is the strongest tie between a caller and a class, in precedence order.
type Relation int

const (
	RelationNone Relation = iota
	RelationStudent
	RelationTeacher
	RelationOwner
	RelationAdmin
)

func (r Relation) String() string {
	switch r {
	case RelationStudent:
		return "student"
	case RelationTeacher:
		return "teacher"
	case RelationOwner:
		return "owner"
	case RelationAdmin:
		return "admin"
	}
	return "none"
}

type Action int

const (
	// ViewClass covers the class details, its members and its published assignments.
	ViewClass Action = iota
	// ManageAssignments covers creating/updating assignments, viewing all submissions, grading and returning.
	ManageAssignments
	// ManageClass covers class settings, membership and invite code rotation.
	ManageClass
)

var minRelations = map[Action]Relation{
	ViewClass:         RelationStudent,
	ManageAssignments: RelationTeacher,
	ManageClass:       RelationOwner,
}

var (
	// errors
	ErrNotEnrolledStudent = core.NewForbiddenError("only enrolled students can submit assignments")
)

// RelationOf evaluates the rules in precedence order, first match wins:
// admin, class owner, active teacher/co-teacher enrollment, active student enrollment.
// Inactive callers and pending/inactive enrollments have no relation.
func RelationOf(caller user.User, cls classroom.Class, enr *classroom.Enrollment) Relation {
	switch {
	case !caller.IsActive:
		return RelationNone
	case caller.IsAdmin():
		return RelationAdmin
	case cls.IsOwner(caller.ID):
		return RelationOwner
	case enr == nil || enr.UserID != caller.ID || enr.ClassID != cls.ID:
		return RelationNone
	case enr.IsActiveTeacher():
		return RelationTeacher
	case enr.IsActiveStudent():
		return RelationStudent
	}
	return RelationNone
}

// Authorize returns core.ErrForbidden unless the caller's relation to the class allows the action.
func Authorize(caller user.User, cls classroom.Class, enr *classroom.Enrollment, action Action) error {
	minRel, ok := minRelations[action]
	if !ok || RelationOf(caller, cls, enr) < minRel {
		return core.ErrForbidden
	}
	return nil
}

// CanCreateClass: teachers and admins only, students never.
func CanCreateClass(caller user.User) error {
	if !caller.CanCreateClass() {
		return core.ErrForbidden
	}
	return nil
}

// CanSubmit requires an active student enrollment in the class, whatever the caller's global role.
func CanSubmit(caller user.User, cls classroom.Class, enr *classroom.Enrollment) error {
	if !caller.IsActive || enr == nil || enr.UserID != caller.ID || enr.ClassID != cls.ID || !enr.IsActiveStudent() {
		return ErrNotEnrolledStudent
	}
	return nil
}

// CanViewSubmission: the submitting student, or anyone managing the class's assignments.
func CanViewSubmission(caller user.User, cls classroom.Class, enr *classroom.Enrollment, sub classroom.Submission) error {
	if caller.IsActive && sub.StudentID == caller.ID {
		return nil
	}
	return Authorize(caller, cls, enr, ManageAssignments)
}
