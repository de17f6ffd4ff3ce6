package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

func seedClass(t *testing.T, db *DB, code string) classroom.Class {
	t.Helper()
	cls, err := NewClassRepository(db).CreateClass(context.Background(), classroom.Class{
		Name:      "Physics",
		ClassCode: code,
		Status:    classroom.ClassActive,
		CreatedAt: core.Now(),
	})
	require.NoError(t, err)
	return cls
}

func TestUserRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())

	usr, err := repo.CreateUser(ctx, user.User{Username: "jane", Email: "jane@example.com"})
	require.NoError(t, err)
	assert.True(t, validID(usr.ID))

	_, err = repo.CreateUser(ctx, user.User{Username: "jane", Email: "other@example.com"})
	assert.Equal(t, user.ErrUsernameExists, err)
	_, err = repo.CreateUser(ctx, user.User{Username: "other", Email: "jane@example.com"})
	assert.Equal(t, user.ErrEmailExists, err)

	assert.NoError(t, repo.CheckUniqueness(ctx, "jane", "jane@example.com", usr.ID))
	assert.Equal(t, user.ErrUsernameExists, repo.CheckUniqueness(ctx, "jane", "x@example.com"))

	_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
	assert.Equal(t, user.ErrNotFound, err)
	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
}

func TestUserRepository_QueryUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())
	active, inactive := true, false

	base := core.Now()
	for i, u := range []user.User{
		{Name: "Bob", Username: "bob", Email: "bob@example.com", Role: user.RoleTeacher, IsActive: true},
		{Name: "Alice", Username: "alice", Email: "alice@example.com", Role: user.RoleStudent, IsActive: true},
		{Name: "Carl", Username: "carl", Email: "carl@example.com", Role: user.RoleStudent},
	} {
		u.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := repo.CreateUser(ctx, u)
		require.NoError(t, err)
	}
	names := func(users []user.User) []string {
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.Username)
		}
		return out
	}

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all", want: []string{"bob", "alice", "carl"}},
		{name: "ordered", ordering: []core.DBOrdering{{Field: "name", Ascending: true}}, want: []string{"alice", "bob", "carl"}},
		{name: "newest first", ordering: []core.DBOrdering{{Field: "created_at"}}, want: []string{"carl", "alice", "bob"}},
		{name: "search", filter: &user.QueryFilter{Search: "AL"}, want: []string{"alice"}},
		{name: "role", filter: &user.QueryFilter{Roles: []user.Role{user.RoleStudent}}, want: []string{"alice", "carl"}},
		{name: "active", filter: &user.QueryFilter{IsActive: &active}, want: []string{"bob", "alice"}},
		{name: "inactive", filter: &user.QueryFilter{IsActive: &inactive}, want: []string{"carl"}},
		{name: "created from", filter: &user.QueryFilter{CreatedFrom: base.Add(time.Minute)}, want: []string{"alice", "carl"}},
		{name: "no ids", filter: &user.QueryFilter{IDs: []string{}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := repo.QueryUsers(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(users))
		})
	}
}

func TestClassRepository_Codes(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewClassRepository(db)
	physics := seedClass(t, db, "ABCDEFGH")

	_, err := repo.CreateClass(ctx, classroom.Class{Name: "Chemistry", ClassCode: "ABCDEFGH"})
	assert.Equal(t, classroom.ErrClassCodeTaken, err)

	chemistry := seedClass(t, db, "ZYXWVUTS")
	physics.InviteCode = "QWERTY"
	_, err = repo.SetInviteCode(ctx, physics)
	require.NoError(t, err)

	chemistry.InviteCode = "QWERTY"
	_, err = repo.SetInviteCode(ctx, chemistry)
	assert.Equal(t, classroom.ErrInviteCodeTaken, err)
	stored, err := repo.GetClass(ctx, chemistry.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.InviteCode, "a rejected write leaves the store unchanged")

	got, err := repo.GetClassByInviteCode(ctx, "QWERTY")
	require.NoError(t, err)
	assert.Equal(t, physics.ID, got.ID)
	_, err = repo.GetClassByInviteCode(ctx, "")
	assert.Equal(t, classroom.ErrClassNotFound, err)
}

func TestEnrollmentRepository(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewEnrollmentRepository(db)
	cls := seedClass(t, db, "ABCDEFGH")

	_, err := repo.CreateEnrollment(ctx, classroom.Enrollment{ClassID: newID(), UserID: "u1"})
	assert.Equal(t, classroom.ErrClassNotFound, err)

	enr, err := repo.CreateEnrollment(ctx, classroom.Enrollment{ClassID: cls.ID, UserID: "u1", Status: classroom.EnrollmentActive})
	require.NoError(t, err)
	_, err = repo.CreateEnrollment(ctx, classroom.Enrollment{ClassID: cls.ID, UserID: "u1"})
	assert.Equal(t, classroom.ErrAlreadyEnrolled, err)

	now := core.Now()
	enr.LastActivity = &now
	enr.UserID = "ignored"
	updated, err := repo.UpdateEnrollment(ctx, enr)
	require.NoError(t, err)
	assert.Equal(t, "u1", updated.UserID)
	assert.Equal(t, &now, updated.LastActivity)

	// touching writes last activity only, and only while active
	later := now.Add(time.Minute)
	require.NoError(t, repo.TouchEnrollment(ctx, enr.ID, later))
	got, err := repo.GetEnrollment(ctx, cls.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, &later, got.LastActivity)

	got.Status = classroom.EnrollmentInactive
	_, err = repo.UpdateEnrollment(ctx, got)
	require.NoError(t, err)
	require.NoError(t, repo.TouchEnrollment(ctx, enr.ID, later.Add(time.Minute)))
	got, err = repo.GetEnrollment(ctx, cls.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, classroom.EnrollmentInactive, got.Status)
	assert.Equal(t, &later, got.LastActivity)
	assert.NoError(t, repo.TouchEnrollment(ctx, newID(), later))

	require.NoError(t, repo.DeleteEnrollment(ctx, cls.ID, "u1"))
	assert.Equal(t, classroom.ErrEnrollmentNotFound, repo.DeleteEnrollment(ctx, cls.ID, "u1"))
	_, err = repo.GetEnrollment(ctx, cls.ID, "u1")
	assert.Equal(t, classroom.ErrEnrollmentNotFound, err)
}

func TestSubmissionRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	db := Open()
	cls := seedClass(t, db, "ABCDEFGH")
	asg, err := NewAssignmentRepository(db).CreateAssignment(ctx, classroom.Assignment{ClassID: cls.ID, Title: "HW"})
	require.NoError(t, err)
	repo := NewSubmissionRepository(db)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreateSubmission(ctx, classroom.Submission{
				AssignmentID: asg.ID,
				StudentID:    "s1",
				Status:       classroom.SubmissionSubmitted,
				SubmittedAt:  core.Now(),
			})
		}(i)
	}
	wg.Wait()

	var created int
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.Equal(t, classroom.ErrAlreadySubmitted, errors.Cause(err))
	}
	assert.Equal(t, 1, created)

	subs, err := repo.QuerySubmissions(ctx, classroom.SubmissionQuery{AssignmentID: asg.ID})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestAssignmentRepository_QueryOrdering(t *testing.T) {
	ctx := context.Background()
	db := Open()
	cls := seedClass(t, db, "ABCDEFGH")
	repo := NewAssignmentRepository(db)

	now := core.Now()
	soon, later := now.Add(time.Hour), now.Add(24*time.Hour)
	for i, a := range []classroom.Assignment{
		{Title: "no due date, old"},
		{Title: "later", DueDate: &later},
		{Title: "no due date, new"},
		{Title: "soon", DueDate: &soon, Status: classroom.AssignmentPublished},
	} {
		a.ClassID = cls.ID
		a.CreatedAt = now.Add(time.Duration(i) * time.Second)
		_, err := repo.CreateAssignment(ctx, a)
		require.NoError(t, err)
	}

	list, total, err := repo.QueryAssignments(ctx, classroom.AssignmentQuery{ClassID: cls.ID}, core.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	titles := make([]string, 0, len(list))
	for _, a := range list {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"soon", "later", "no due date, new", "no due date, old"}, titles)

	list, total, err = repo.QueryAssignments(ctx, classroom.AssignmentQuery{
		ClassID: cls.ID,
		Status:  []classroom.AssignmentStatus{classroom.AssignmentPublished},
	}, core.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "soon", list[0].Title)
}

func TestSubmissionRepository_QuerySubmissionsPage(t *testing.T) {
	ctx := context.Background()
	db := Open()
	cls := seedClass(t, db, "ABCDEFGH")
	asgRepo := NewAssignmentRepository(db)
	repo := NewSubmissionRepository(db)

	now := core.Now()
	for i := 0; i < 5; i++ {
		asg, err := asgRepo.CreateAssignment(ctx, classroom.Assignment{ClassID: cls.ID, Title: "HW"})
		require.NoError(t, err)
		for _, student := range []string{"s1", "s2"} {
			_, err = repo.CreateSubmission(ctx, classroom.Submission{
				AssignmentID: asg.ID,
				StudentID:    student,
				Content:      string(rune('a' + i)),
				Status:       classroom.SubmissionSubmitted,
				SubmittedAt:  now.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}
	}

	contents := func(subs []classroom.Submission) []string {
		out := make([]string, 0, len(subs))
		for _, s := range subs {
			out = append(out, s.Content)
		}
		return out
	}

	q := classroom.SubmissionQuery{StudentID: "s1"}
	page, total, err := repo.QuerySubmissionsPage(ctx, q, core.NewPagination(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"e", "d"}, contents(page))

	page, total, err = repo.QuerySubmissionsPage(ctx, q, core.NewPagination(3, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"a"}, contents(page))

	page, total, err = repo.QuerySubmissionsPage(ctx, q, core.NewPagination(4, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)
}
