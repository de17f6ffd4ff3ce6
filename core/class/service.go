package class

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/policy"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrInvalidInviteCode = core.NewNotFoundError("invalid invite code")
	ErrClassNotActive    = core.NewValidationError(errors.New("this class is not accepting new members"))
	ErrOwnerEnrollment   = core.NewValidationError(errors.New("the class owner cannot be enrolled in their own class"))
	ErrInactiveMember    = core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "this user is deactivated"})
	ErrUnknownMember     = core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "user not found"})

	ErrInactiveEnrollment = core.NewValidationError(errors.New("inactive enrollments cannot be changed"))
)

type Service struct {
	classes     classroom.ClassRepository
	enrollments classroom.EnrollmentRepository
	assignments classroom.AssignmentRepository
	users       user.Repository
	inviteTTL   time.Duration
	maxAttempts int
}

func NewService(
	classes classroom.ClassRepository,
	enrollments classroom.EnrollmentRepository,
	assignments classroom.AssignmentRepository,
	users user.Repository,
	conf *core.Config,
) *Service {
	return &Service{
		classes:     classes,
		enrollments: enrollments,
		assignments: assignments,
		users:       users,
		inviteTTL:   conf.Classroom.InviteCodeTTL,
		maxAttempts: conf.Classroom.CodeMaxAttempts,
	}
}

// Authorize checks the caller's relation to acc.Class against the action.
func (acc Access) Authorize(caller user.User, action policy.Action) error {
	return policy.Authorize(caller, acc.Class, acc.Enrollment, action)
}

func (acc Access) Relation(caller user.User) policy.Relation {
	return policy.RelationOf(caller, acc.Class, acc.Enrollment)
}

// Access loads the Class and the caller's Enrollment in it, if any.
func (svc *Service) Access(ctx context.Context, caller user.User, classID string) (Access, error) {
	cls, err := svc.classes.GetClass(ctx, classID)
	if err != nil {
		return Access{}, err
	}
	acc := Access{Class: cls}

	enr, err := svc.enrollments.GetEnrollment(ctx, cls.ID, caller.ID)
	switch errors.Cause(err) {
	case nil:
		acc.Enrollment = &enr
	case classroom.ErrEnrollmentNotFound:
	default:
		return Access{}, errors.Wrap(err, "getting caller enrollment")
	}
	return acc, nil
}

// Create creates a Class owned by the caller, with a fresh class code and no invite code.
func (svc *Service) Create(ctx context.Context, caller user.User, nc NewClass) (classroom.Class, error) {
	if err := policy.CanCreateClass(caller); err != nil {
		return classroom.Class{}, err
	}

	now := core.Now()
	cls := classroom.Class{
		OwnerID:     caller.ID,
		Name:        nc.Name,
		Description: nc.Description,
		Status:      nc.Status,
		Settings:    classroom.DefaultClassSettings(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cls.Status == "" {
		cls.Status = classroom.ClassActive
	}
	if nc.Settings != nil {
		cls.Settings = *nc.Settings
	}

	var created classroom.Class
	err := withUniqueCodes(ctx, svc.maxAttempts, func(collisions int) error {
		code, err := randomCodeFunc(codeWidth(ClassCodeLength, collisions))
		if err != nil {
			return err
		}
		cls.ClassCode = code
		created, err = svc.classes.CreateClass(ctx, cls)
		return err
	}, classroom.ErrClassCodeTaken)
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "creating class")
	}
	return created, nil
}

// Get returns the Class with its stats. Only class managers see the invite code.
func (svc *Service) Get(ctx context.Context, caller user.User, classID string) (Details, error) {
	acc, err := svc.Access(ctx, caller, classID)
	if err != nil {
		return Details{}, err
	}
	if err = acc.Authorize(caller, policy.ViewClass); err != nil {
		return Details{}, err
	}

	enrollments, err := svc.enrollments.QueryEnrollments(ctx, acc.Class.ID)
	if err != nil {
		return Details{}, errors.Wrap(err, "querying enrollments")
	}
	rel := acc.Relation(caller)
	asgQuery := classroom.AssignmentQuery{ClassID: acc.Class.ID}
	if rel < policy.RelationTeacher {
		asgQuery.Status = []classroom.AssignmentStatus{classroom.AssignmentPublished}
	}
	_, asgCount, err := svc.assignments.QueryAssignments(ctx, asgQuery, core.NewPagination(1, 1))
	if err != nil {
		return Details{}, errors.Wrap(err, "counting assignments")
	}

	details := Details{Class: acc.Class, Relation: rel.String()}
	details.Stats.Assignments = asgCount
	for _, enr := range enrollments {
		switch {
		case enr.IsActiveStudent():
			details.Stats.Students++
		case enr.IsActiveTeacher():
			details.Stats.Teachers++
		}
	}
	if rel < policy.RelationOwner {
		details.InviteCode = ""
		details.InviteCodeExpiresAt = nil
	}
	return details, nil
}

// ListMine returns the classes the caller owns or is actively enrolled in, every class for admins.
func (svc *Service) ListMine(ctx context.Context, caller user.User, q classroom.ClassQuery, page core.Pagination) ([]classroom.Class, int, error) {
	q.Search = core.CleanString(q.Search)
	q.MemberID = ""
	if !caller.IsAdmin() {
		q.MemberID = caller.ID
	}
	classes, total, err := svc.classes.QueryClasses(ctx, q, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying classes")
	}
	for i := range classes {
		if !caller.IsAdmin() && !classes[i].IsOwner(caller.ID) {
			classes[i].InviteCode = ""
			classes[i].InviteCodeExpiresAt = nil
		}
	}
	return classes, total, nil
}

// Update applies uc to the Class. Status changes must follow the class lifecycle.
func (svc *Service) Update(ctx context.Context, caller user.User, classID string, uc UpdateClass) (classroom.Class, error) {
	acc, err := svc.Access(ctx, caller, classID)
	if err != nil {
		return classroom.Class{}, err
	}
	if err = acc.Authorize(caller, policy.ManageClass); err != nil {
		return classroom.Class{}, err
	}

	cls := acc.Class
	if uc.Status != nil {
		if !cls.Status.CanTransitionTo(*uc.Status) {
			return classroom.Class{}, classroom.NewTransitionError(cls.Status, *uc.Status)
		}
		cls.Status = *uc.Status
	}
	if uc.Name != nil {
		cls.Name = *uc.Name
	}
	if uc.Description != nil {
		cls.Description = *uc.Description
	}
	if uc.Settings != nil {
		cls.Settings = *uc.Settings
	}
	cls.UpdatedAt = core.Now()

	cls, err = svc.classes.UpdateClass(ctx, cls)
	return cls, errors.Wrap(err, "updating class")
}

// RotateInviteCode replaces the invite code of the Class, invalidating the previous one.
func (svc *Service) RotateInviteCode(ctx context.Context, caller user.User, classID string) (classroom.Class, error) {
	acc, err := svc.Access(ctx, caller, classID)
	if err != nil {
		return classroom.Class{}, err
	}
	if err = acc.Authorize(caller, policy.ManageClass); err != nil {
		return classroom.Class{}, err
	}

	cls := acc.Class
	now := core.Now()
	cls.InviteCodeExpiresAt = nil
	if svc.inviteTTL > 0 {
		exp := now.Add(svc.inviteTTL)
		cls.InviteCodeExpiresAt = &exp
	}
	cls.UpdatedAt = now

	var updated classroom.Class
	err = withUniqueCodes(ctx, svc.maxAttempts, func(collisions int) error {
		code, err := randomCodeFunc(codeWidth(InviteCodeLength, collisions))
		if err != nil {
			return err
		}
		cls.InviteCode = code
		updated, err = svc.classes.SetInviteCode(ctx, cls)
		return err
	}, classroom.ErrInviteCodeTaken)
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "rotating invite code")
	}
	return updated, nil
}

// Join enrolls the caller as an active student of the active Class whose current invite code is code.
func (svc *Service) Join(ctx context.Context, caller user.User, jc JoinClass) (classroom.Class, classroom.Enrollment, error) {
	if !caller.IsActive {
		return classroom.Class{}, classroom.Enrollment{}, user.ErrAccountDeactivated
	}

	cls, err := svc.classes.GetClassByInviteCode(ctx, jc.InviteCode)
	if err != nil {
		if errors.Cause(err) == classroom.ErrClassNotFound {
			return classroom.Class{}, classroom.Enrollment{}, ErrInvalidInviteCode
		}
		return classroom.Class{}, classroom.Enrollment{}, errors.Wrap(err, "finding class by invite code")
	}
	now := core.Now()
	if !cls.InviteCodeValid(jc.InviteCode, now) {
		return classroom.Class{}, classroom.Enrollment{}, ErrInvalidInviteCode
	}
	if cls.Status != classroom.ClassActive {
		return classroom.Class{}, classroom.Enrollment{}, ErrClassNotActive
	}
	if cls.IsOwner(caller.ID) {
		return classroom.Class{}, classroom.Enrollment{}, ErrOwnerEnrollment
	}

	// the (user, class) unique constraint rejects a second join, even a concurrent one
	enr, err := svc.enrollments.CreateEnrollment(ctx, classroom.Enrollment{
		ClassID:  cls.ID,
		UserID:   caller.ID,
		Role:     classroom.EnrollmentStudent,
		Status:   classroom.EnrollmentActive,
		JoinedAt: now,
	})
	if err != nil {
		return classroom.Class{}, classroom.Enrollment{}, errors.Wrap(err, "joining class")
	}
	cls.InviteCode = ""
	cls.InviteCodeExpiresAt = nil
	return cls, enr, nil
}

// ListMembers returns the enrollments of the Class along with their users, in join order.
func (svc *Service) ListMembers(ctx context.Context, caller user.User, classID string) ([]Member, error) {
	acc, err := svc.Access(ctx, caller, classID)
	if err != nil {
		return nil, err
	}
	if err = acc.Authorize(caller, policy.ViewClass); err != nil {
		return nil, err
	}

	enrollments, err := svc.enrollments.QueryEnrollments(ctx, acc.Class.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(enrollments) == 0 {
		return []Member{}, nil
	}

	ids := make([]string, 0, len(enrollments))
	for _, enr := range enrollments {
		ids = append(ids, enr.UserID)
	}
	users, err := svc.users.QueryUsers(ctx, &user.QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members := make([]Member, 0, len(enrollments))
	for _, enr := range enrollments {
		m := Member{Enrollment: enr}
		if u, ok := byID[enr.UserID]; ok {
			m.User = &u
		}
		members = append(members, m)
	}
	return members, nil
}

// AddMember enrolls an existing, active User with the given role. Status defaults to active.
func (svc *Service) AddMember(ctx context.Context, caller user.User, classID string, nm NewMember) (Member, error) {
	acc, err := svc.Access(ctx, caller, classID)
	if err != nil {
		return Member{}, err
	}
	if err = acc.Authorize(caller, policy.ManageClass); err != nil {
		return Member{}, err
	}

	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: nm.UserID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Member{}, ErrUnknownMember
		}
		return Member{}, errors.Wrap(err, "getting user")
	}
	if !usr.IsActive {
		return Member{}, ErrInactiveMember
	}
	if acc.Class.IsOwner(usr.ID) {
		return Member{}, ErrOwnerEnrollment
	}

	status := nm.Status
	if status == "" {
		status = classroom.EnrollmentActive
	}
	enr, err := svc.enrollments.CreateEnrollment(ctx, classroom.Enrollment{
		ClassID:  acc.Class.ID,
		UserID:   usr.ID,
		Role:     nm.Role,
		Status:   status,
		JoinedAt: core.Now(),
	})
	if err != nil {
		return Member{}, errors.Wrap(err, "adding member")
	}
	return Member{Enrollment: enr, User: &usr}, nil
}

// UpdateMember changes the role and/or status of an enrollment. Inactive enrollments are frozen.
func (svc *Service) UpdateMember(ctx context.Context, caller user.User, classID, userID string, um UpdateMember) (classroom.Enrollment, error) {
	acc, err := svc.Access(ctx, caller, classID)
	if err != nil {
		return classroom.Enrollment{}, err
	}
	if err = acc.Authorize(caller, policy.ManageClass); err != nil {
		return classroom.Enrollment{}, err
	}

	enr, err := svc.enrollments.GetEnrollment(ctx, acc.Class.ID, userID)
	if err != nil {
		return classroom.Enrollment{}, err
	}
	if um.Role != nil && *um.Role != enr.Role {
		if enr.Status == classroom.EnrollmentInactive {
			return classroom.Enrollment{}, ErrInactiveEnrollment
		}
		enr.Role = *um.Role
	}
	if um.Status != nil {
		if !enr.Status.CanTransitionTo(*um.Status) {
			return classroom.Enrollment{}, classroom.NewTransitionError(enr.Status, *um.Status)
		}
		enr.Status = *um.Status
	}

	enr, err = svc.enrollments.UpdateEnrollment(ctx, enr)
	return enr, errors.Wrap(err, "updating enrollment")
}

// RemoveMember deletes the enrollment of userID in the Class.
func (svc *Service) RemoveMember(ctx context.Context, caller user.User, classID, userID string) error {
	acc, err := svc.Access(ctx, caller, classID)
	if err != nil {
		return err
	}
	if err = acc.Authorize(caller, policy.ManageClass); err != nil {
		return err
	}
	return svc.enrollments.DeleteEnrollment(ctx, acc.Class.ID, userID)
}

// Touch records activity of the caller in the Class. It is a no-op for non-members.
func (svc *Service) Touch(ctx context.Context, acc Access) error {
	if acc.Enrollment == nil || !acc.Enrollment.IsActive() {
		return nil
	}
	// role and status may have changed since acc was loaded: only last_activity is written
	err := svc.enrollments.TouchEnrollment(ctx, acc.Enrollment.ID, core.Now())
	return errors.Wrap(err, "recording activity")
}
