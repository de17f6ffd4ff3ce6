package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

func TestRelationOf(t *testing.T) {
	cls := classroom.Class{ID: "c1", OwnerID: "owner"}

	admin := user.User{ID: "admin", Role: user.RoleAdmin, IsActive: true}
	owner := user.User{ID: "owner", Role: user.RoleTeacher, IsActive: true}
	teacher := user.User{ID: "teacher", Role: user.RoleTeacher, IsActive: true}
	student := user.User{ID: "student", Role: user.RoleStudent, IsActive: true}
	inactive := user.User{ID: "student", Role: user.RoleStudent, IsActive: false}
	inactiveAdmin := user.User{ID: "admin", Role: user.RoleAdmin, IsActive: false}

	enr := func(userID string, role classroom.EnrollmentRole, status classroom.EnrollmentStatus) *classroom.Enrollment {
		return &classroom.Enrollment{ClassID: cls.ID, UserID: userID, Role: role, Status: status}
	}

	tests := []struct {
		name   string
		caller user.User
		enr    *classroom.Enrollment
		want   Relation
	}{
		{name: "admin without enrollment", caller: admin, want: RelationAdmin},
		{name: "admin enrolled as student", caller: admin, enr: enr("admin", classroom.EnrollmentStudent, classroom.EnrollmentActive), want: RelationAdmin},
		{name: "inactive admin", caller: inactiveAdmin, want: RelationNone},
		{name: "owner", caller: owner, want: RelationOwner},
		{name: "owner with inactive enrollment", caller: owner, enr: enr("owner", classroom.EnrollmentStudent, classroom.EnrollmentInactive), want: RelationOwner},
		{name: "active teacher", caller: teacher, enr: enr("teacher", classroom.EnrollmentTeacher, classroom.EnrollmentActive), want: RelationTeacher},
		{name: "active co-teacher", caller: teacher, enr: enr("teacher", classroom.EnrollmentCoTeacher, classroom.EnrollmentActive), want: RelationTeacher},
		{name: "pending teacher", caller: teacher, enr: enr("teacher", classroom.EnrollmentTeacher, classroom.EnrollmentPending), want: RelationNone},
		{name: "active student", caller: student, enr: enr("student", classroom.EnrollmentStudent, classroom.EnrollmentActive), want: RelationStudent},
		{name: "teacher role enrolled as student", caller: teacher, enr: enr("teacher", classroom.EnrollmentStudent, classroom.EnrollmentActive), want: RelationStudent},
		{name: "inactive student enrollment", caller: student, enr: enr("student", classroom.EnrollmentStudent, classroom.EnrollmentInactive), want: RelationNone},
		{name: "pending student enrollment", caller: student, enr: enr("student", classroom.EnrollmentStudent, classroom.EnrollmentPending), want: RelationNone},
		{name: "inactive user", caller: inactive, enr: enr("student", classroom.EnrollmentStudent, classroom.EnrollmentActive), want: RelationNone},
		{name: "no enrollment", caller: student, want: RelationNone},
		{name: "someone else's enrollment", caller: student, enr: enr("teacher", classroom.EnrollmentTeacher, classroom.EnrollmentActive), want: RelationNone},
		{
			name: "enrollment in another class", caller: student, want: RelationNone,
			enr: &classroom.Enrollment{ClassID: "c2", UserID: "student", Role: classroom.EnrollmentStudent, Status: classroom.EnrollmentActive},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelationOf(tt.caller, cls, tt.enr))
		})
	}
}

func TestAuthorize(t *testing.T) {
	cls := classroom.Class{ID: "c1", OwnerID: "owner"}
	admin := user.User{ID: "admin", Role: user.RoleAdmin, IsActive: true}
	owner := user.User{ID: "owner", Role: user.RoleTeacher, IsActive: true}
	teacher := user.User{ID: "teacher", Role: user.RoleTeacher, IsActive: true}
	student := user.User{ID: "student", Role: user.RoleStudent, IsActive: true}
	stranger := user.User{ID: "stranger", Role: user.RoleTeacher, IsActive: true}

	teacherEnr := &classroom.Enrollment{ClassID: "c1", UserID: "teacher", Role: classroom.EnrollmentTeacher, Status: classroom.EnrollmentActive}
	studentEnr := &classroom.Enrollment{ClassID: "c1", UserID: "student", Role: classroom.EnrollmentStudent, Status: classroom.EnrollmentActive}

	tests := []struct {
		name    string
		caller  user.User
		enr     *classroom.Enrollment
		action  Action
		wantErr error
	}{
		{name: "admin manages class", caller: admin, action: ManageClass},
		{name: "owner manages class", caller: owner, action: ManageClass},
		{name: "teacher cannot manage class", caller: teacher, enr: teacherEnr, action: ManageClass, wantErr: core.ErrForbidden},
		{name: "teacher manages assignments", caller: teacher, enr: teacherEnr, action: ManageAssignments},
		{name: "student cannot manage assignments", caller: student, enr: studentEnr, action: ManageAssignments, wantErr: core.ErrForbidden},
		{name: "student views class", caller: student, enr: studentEnr, action: ViewClass},
		{name: "stranger cannot view class", caller: stranger, action: ViewClass, wantErr: core.ErrForbidden},
		{name: "unknown action", caller: admin, action: Action(99), wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, Authorize(tt.caller, cls, tt.enr, tt.action))
		})
	}
}

func TestCanSubmit(t *testing.T) {
	cls := classroom.Class{ID: "c1", OwnerID: "owner"}
	admin := user.User{ID: "admin", Role: user.RoleAdmin, IsActive: true}
	owner := user.User{ID: "owner", Role: user.RoleTeacher, IsActive: true}
	student := user.User{ID: "student", Role: user.RoleStudent, IsActive: true}

	studentEnr := &classroom.Enrollment{ClassID: "c1", UserID: "student", Role: classroom.EnrollmentStudent, Status: classroom.EnrollmentActive}
	pendingEnr := &classroom.Enrollment{ClassID: "c1", UserID: "student", Role: classroom.EnrollmentStudent, Status: classroom.EnrollmentPending}
	coTeacherEnr := &classroom.Enrollment{ClassID: "c1", UserID: "student", Role: classroom.EnrollmentCoTeacher, Status: classroom.EnrollmentActive}

	assert.NoError(t, CanSubmit(student, cls, studentEnr))
	assert.Equal(t, ErrNotEnrolledStudent, CanSubmit(student, cls, nil))
	assert.Equal(t, ErrNotEnrolledStudent, CanSubmit(student, cls, pendingEnr))
	assert.Equal(t, ErrNotEnrolledStudent, CanSubmit(student, cls, coTeacherEnr))
	assert.Equal(t, ErrNotEnrolledStudent, CanSubmit(admin, cls, nil), "admins do not submit")
	assert.Equal(t, ErrNotEnrolledStudent, CanSubmit(owner, cls, nil), "owners do not submit")
}

func TestCanCreateClass(t *testing.T) {
	assert.NoError(t, CanCreateClass(user.User{Role: user.RoleAdmin, IsActive: true}))
	assert.NoError(t, CanCreateClass(user.User{Role: user.RoleTeacher, IsActive: true}))
	assert.Equal(t, core.ErrForbidden, CanCreateClass(user.User{Role: user.RoleStudent, IsActive: true}))
	assert.Equal(t, core.ErrForbidden, CanCreateClass(user.User{Role: user.RoleTeacher, IsActive: false}))
}

func TestCanViewSubmission(t *testing.T) {
	cls := classroom.Class{ID: "c1", OwnerID: "owner"}
	owner := user.User{ID: "owner", Role: user.RoleTeacher, IsActive: true}
	student := user.User{ID: "student", Role: user.RoleStudent, IsActive: true}
	other := user.User{ID: "other", Role: user.RoleStudent, IsActive: true}
	otherEnr := &classroom.Enrollment{ClassID: "c1", UserID: "other", Role: classroom.EnrollmentStudent, Status: classroom.EnrollmentActive}
	sub := classroom.Submission{StudentID: "student"}

	assert.NoError(t, CanViewSubmission(student, cls, nil, sub))
	assert.NoError(t, CanViewSubmission(owner, cls, nil, sub))
	assert.Equal(t, core.ErrForbidden, CanViewSubmission(other, cls, otherEnr, sub))
}
