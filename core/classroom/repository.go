package classroom

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrClassNotFound      = core.NewNotFoundError("class not found")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment not found")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")

	// unique constraint violations
	ErrClassCodeTaken   = core.NewConflictError("class code already in use")
	ErrInviteCodeTaken  = core.NewConflictError("invite code already in use")
	ErrAlreadyEnrolled  = core.NewConflictError("user is already enrolled in this class")
	ErrAlreadySubmitted = core.NewConflictError("you have already submitted this assignment")

	ErrGradeOutOfRange = core.NewValidationError(
		errors.New("grade must be between 0 and 100"),
		core.FieldError{Field: "grade", Error: "grade must be between 0 and 100"},
	)
	ErrNotGraded = core.NewValidationError(errors.New("only graded submissions can be returned"))
)

type ClassQuery struct {
	Search   string        `query:"search"`
	Status   []ClassStatus `query:"status"`
	MemberID string        `query:"-"` // owned by, or actively enrolled in
}

type AssignmentQuery struct {
	ClassID string             `query:"-"`
	Status  []AssignmentStatus `query:"status"`
}

type SubmissionQuery struct {
	AssignmentID string             `query:"-"`
	StudentID    string             `query:"-"`
	Status       []SubmissionStatus `query:"status"`
}

// The stores enforce the unique constraints; a violating write returns the matching Err*Taken/ErrAlready* error
// and leaves the store unchanged.
type (
	ClassRepository interface {
		// CreateClass returns ErrClassCodeTaken or ErrInviteCodeTaken on a code collision.
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		GetClassByInviteCode(ctx context.Context, code string) (Class, error)
		// QueryClasses returns a page of classes ordered by -created_at and the total count of matches.
		QueryClasses(ctx context.Context, q ClassQuery, page core.Pagination) ([]Class, int, error)
		// UpdateClass saves name, description, status and settings.
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		// SetInviteCode returns ErrInviteCodeTaken on a code collision.
		SetInviteCode(ctx context.Context, cls Class) (Class, error)
	}

	EnrollmentRepository interface {
		// CreateEnrollment returns ErrAlreadyEnrolled when (user, class) is already enrolled.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, classID, userID string) (Enrollment, error)
		// QueryEnrollments returns all enrollments of a class ordered by joined_at.
		QueryEnrollments(ctx context.Context, classID string) ([]Enrollment, error)
		// UpdateEnrollment saves role, status and last activity.
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		// TouchEnrollment sets last activity only, and only while the enrollment is active.
		TouchEnrollment(ctx context.Context, id string, at time.Time) error
		DeleteEnrollment(ctx context.Context, classID, userID string) error
	}

	AssignmentRepository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// QueryAssignments returns a page of assignments ordered by due_date, then -created_at, and the total count.
		QueryAssignments(ctx context.Context, q AssignmentQuery, page core.Pagination) ([]Assignment, int, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
	}

	SubmissionRepository interface {
		// CreateSubmission returns ErrAlreadySubmitted when (assignment, student) already has a submission.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		FindSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		// QuerySubmissions returns the matching submissions ordered by submitted_at.
		QuerySubmissions(ctx context.Context, q SubmissionQuery) ([]Submission, error)
		// QuerySubmissionsPage returns a page of the matching submissions ordered by -submitted_at, and the total count.
		QuerySubmissionsPage(ctx context.Context, q SubmissionQuery, page core.Pagination) ([]Submission, int, error)
		// UpdateSubmission saves status and the grading fields in a single write.
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
	}
)
