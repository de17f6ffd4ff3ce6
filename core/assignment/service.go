package assignment

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/policy"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotAvailable = core.NewValidationError(errors.New("this assignment is not available for submission"))
	ErrPastDue      = core.NewValidationError(errors.New("this assignment is past due"))
)

type Service struct {
	classes     *class.Service
	assignments classroom.AssignmentRepository
	submissions classroom.SubmissionRepository
	users       user.Repository
	mailSvc     core.EmailService
	logger      core.Logger
	dueDelta    time.Duration
}

func NewService(
	classes *class.Service,
	assignments classroom.AssignmentRepository,
	submissions classroom.SubmissionRepository,
	users user.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		classes:     classes,
		assignments: assignments,
		submissions: submissions,
		users:       users,
		mailSvc:     mailSvc,
		logger:      logger,
		dueDelta:    conf.Classroom.DefaultDueDelta,
	}
}

// access loads the Assignment along with the caller's access to its Class.
func (svc *Service) access(ctx context.Context, caller user.User, assignmentID string) (classroom.Assignment, class.Access, error) {
	asg, err := svc.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return classroom.Assignment{}, class.Access{}, err
	}
	acc, err := svc.classes.Access(ctx, caller, asg.ClassID)
	if err != nil {
		return classroom.Assignment{}, class.Access{}, errors.Wrap(err, "getting assignment class")
	}
	return asg, acc, nil
}

// Create creates an Assignment in the class na.ClassID.
func (svc *Service) Create(ctx context.Context, caller user.User, na NewAssignment) (classroom.Assignment, error) {
	acc, err := svc.classes.Access(ctx, caller, na.ClassID)
	if err != nil {
		return classroom.Assignment{}, err
	}
	if err = acc.Authorize(caller, policy.ManageAssignments); err != nil {
		return classroom.Assignment{}, err
	}

	now := core.Now()
	asg := classroom.Assignment{
		ClassID:     acc.Class.ID,
		CreatedBy:   caller.ID,
		Title:       na.Title,
		Description: na.Description,
		Type:        na.Type,
		Status:      na.Status,
		DueDate:     na.DueDate,
		Points:      classroom.DefaultPoints,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if asg.Type == "" {
		asg.Type = classroom.TypeAssignment
	}
	if asg.Status == "" {
		asg.Status = classroom.AssignmentDraft
	}
	if asg.DueDate == nil {
		due := now.Add(svc.dueDelta)
		asg.DueDate = &due
	} else {
		due := asg.DueDate.UTC()
		asg.DueDate = &due
	}
	if na.Points != nil {
		asg.Points = *na.Points
	}
	if na.Settings != nil {
		asg.Settings = *na.Settings
	}

	asg, err = svc.assignments.CreateAssignment(ctx, asg)
	return asg, errors.Wrap(err, "creating assignment")
}

// Get returns the Assignment to class members. Students only see published assignments.
func (svc *Service) Get(ctx context.Context, caller user.User, assignmentID string) (classroom.Assignment, error) {
	asg, acc, err := svc.access(ctx, caller, assignmentID)
	if err != nil {
		return classroom.Assignment{}, err
	}
	if err = acc.Authorize(caller, policy.ViewClass); err != nil {
		return classroom.Assignment{}, err
	}
	if acc.Relation(caller) < policy.RelationTeacher && !asg.IsPublished() {
		return classroom.Assignment{}, classroom.ErrAssignmentNotFound
	}
	return asg, nil
}

// ListByClass returns a page of the class's assignments. Students only see published assignments.
func (svc *Service) ListByClass(ctx context.Context, caller user.User, classID string, q classroom.AssignmentQuery, page core.Pagination) ([]classroom.Assignment, int, error) {
	acc, err := svc.classes.Access(ctx, caller, classID)
	if err != nil {
		return nil, 0, err
	}
	if err = acc.Authorize(caller, policy.ViewClass); err != nil {
		return nil, 0, err
	}

	q.ClassID = acc.Class.ID
	if acc.Relation(caller) < policy.RelationTeacher {
		q.Status = []classroom.AssignmentStatus{classroom.AssignmentPublished}
	}
	assignments, total, err := svc.assignments.QueryAssignments(ctx, q, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying assignments")
	}
	return assignments, total, nil
}

// Update applies ua to the Assignment. Status changes must follow the assignment lifecycle.
func (svc *Service) Update(ctx context.Context, caller user.User, assignmentID string, ua UpdateAssignment) (classroom.Assignment, error) {
	asg, acc, err := svc.access(ctx, caller, assignmentID)
	if err != nil {
		return classroom.Assignment{}, err
	}
	if err = acc.Authorize(caller, policy.ManageAssignments); err != nil {
		return classroom.Assignment{}, err
	}

	if ua.Status != nil {
		if !asg.Status.CanTransitionTo(*ua.Status) {
			return classroom.Assignment{}, classroom.NewTransitionError(asg.Status, *ua.Status)
		}
		asg.Status = *ua.Status
	}
	if ua.Title != nil {
		asg.Title = *ua.Title
	}
	if ua.Description != nil {
		asg.Description = *ua.Description
	}
	if ua.Type != nil {
		asg.Type = *ua.Type
	}
	if ua.DueDate != nil {
		due := ua.DueDate.UTC()
		asg.DueDate = &due
	}
	if ua.Points != nil {
		asg.Points = *ua.Points
	}
	if ua.Settings != nil {
		asg.Settings = *ua.Settings
	}
	asg.UpdatedAt = core.Now()

	asg, err = svc.assignments.UpdateAssignment(ctx, asg)
	return asg, errors.Wrap(err, "updating assignment")
}

// Submit records the caller's one and only submission to the Assignment.
// The checks run in order, each failing with its own error:
// any relation to the class (core.ErrForbidden), published (ErrNotAvailable),
// active student enrollment (policy.ErrNotEnrolledStudent), no prior submission (classroom.ErrAlreadySubmitted)
// and due date (ErrPastDue, or a `late` submission when the assignment allows it).
func (svc *Service) Submit(ctx context.Context, caller user.User, assignmentID string, sa SubmitAssignment) (classroom.Submission, error) {
	asg, acc, err := svc.access(ctx, caller, assignmentID)
	if err != nil {
		return classroom.Submission{}, err
	}
	if acc.Relation(caller) == policy.RelationNone {
		return classroom.Submission{}, core.ErrForbidden
	}
	if !asg.IsPublished() {
		return classroom.Submission{}, ErrNotAvailable
	}
	if err = policy.CanSubmit(caller, acc.Class, acc.Enrollment); err != nil {
		return classroom.Submission{}, err
	}
	switch _, err = svc.submissions.FindSubmission(ctx, asg.ID, caller.ID); errors.Cause(err) {
	case nil:
		return classroom.Submission{}, classroom.ErrAlreadySubmitted
	case classroom.ErrSubmissionNotFound:
	default:
		return classroom.Submission{}, errors.Wrap(err, "finding submission")
	}

	now := core.Now()
	status := classroom.SubmissionSubmitted
	if asg.IsPastDue(now) {
		if !asg.Settings.AllowLateSubmissions {
			return classroom.Submission{}, ErrPastDue
		}
		status = classroom.SubmissionLate
	}

	// the lookup above is only a pre-check: the (assignment, student) unique constraint rejects concurrent submits
	sub, err := svc.submissions.CreateSubmission(ctx, classroom.Submission{
		AssignmentID: asg.ID,
		StudentID:    caller.ID,
		Content:      sa.Content,
		Status:       status,
		SubmittedAt:  now,
	})
	if err != nil {
		return classroom.Submission{}, errors.Wrap(err, "creating submission")
	}

	if err = svc.classes.Touch(ctx, acc); err != nil {
		svc.logger.Warn("recording class activity failed", err, caller)
	}
	return sub, nil
}

// GetSubmission returns the Submission to its student or to the class's teachers.
func (svc *Service) GetSubmission(ctx context.Context, caller user.User, submissionID string) (classroom.Submission, error) {
	sub, err := svc.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return classroom.Submission{}, err
	}
	_, acc, err := svc.access(ctx, caller, sub.AssignmentID)
	if err != nil {
		return classroom.Submission{}, err
	}
	if err = policy.CanViewSubmission(caller, acc.Class, acc.Enrollment, sub); err != nil {
		return classroom.Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns every submission to the Assignment along with their students.
func (svc *Service) ListSubmissions(ctx context.Context, caller user.User, assignmentID string, q classroom.SubmissionQuery) ([]StudentSubmission, error) {
	asg, acc, err := svc.access(ctx, caller, assignmentID)
	if err != nil {
		return nil, err
	}
	if err = acc.Authorize(caller, policy.ManageAssignments); err != nil {
		return nil, err
	}

	q.AssignmentID = asg.ID
	q.StudentID = ""
	submissions, err := svc.submissions.QuerySubmissions(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	if len(submissions) == 0 {
		return []StudentSubmission{}, nil
	}

	ids := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		ids = append(ids, sub.StudentID)
	}
	students, err := svc.users.QueryUsers(ctx, &user.QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	byID := make(map[string]user.User, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	subs := make([]StudentSubmission, 0, len(submissions))
	for _, sub := range submissions {
		ss := StudentSubmission{Submission: sub}
		if s, ok := byID[sub.StudentID]; ok {
			ss.Student = &s
		}
		subs = append(subs, ss)
	}
	return subs, nil
}

// Grade moves the Submission to graded, recording grade, feedback, grader and time in a single write.
// The student is notified by email when the class has notifications enabled.
func (svc *Service) Grade(ctx context.Context, caller user.User, submissionID string, gs GradeSubmission) (classroom.Submission, error) {
	if gs.Grade == nil {
		return classroom.Submission{}, classroom.ErrGradeOutOfRange
	}
	sub, err := svc.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return classroom.Submission{}, err
	}
	asg, acc, err := svc.access(ctx, caller, sub.AssignmentID)
	if err != nil {
		return classroom.Submission{}, err
	}
	if err = acc.Authorize(caller, policy.ManageAssignments); err != nil {
		return classroom.Submission{}, err
	}

	if err = sub.ApplyGrade(*gs.Grade, gs.Feedback, caller.ID, core.Now()); err != nil {
		return classroom.Submission{}, err
	}
	sub, err = svc.submissions.UpdateSubmission(ctx, sub)
	if err != nil {
		return classroom.Submission{}, errors.Wrap(err, "grading submission")
	}

	if acc.Class.Settings.NotificationsEnabled {
		svc.notifyGraded(ctx, caller, acc.Class, asg, sub)
	}
	return sub, nil
}

func (svc *Service) notifyGraded(ctx context.Context, caller user.User, cls classroom.Class, asg classroom.Assignment, sub classroom.Submission) {
	student, err := svc.users.GetUser(ctx, user.GetFilter{ID: sub.StudentID})
	if err != nil {
		svc.logger.Warn("grading notification: student lookup failed", err, caller)
		return
	}
	if !student.IsActive {
		return
	}

	var feedback string
	if sub.Feedback != nil {
		feedback = *sub.Feedback
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Your submission has been graded",
		TemplateName: "submission_graded",
		TemplateData: map[string]interface{}{
			"Name":            student.Name,
			"AssignmentID":    asg.ID,
			"AssignmentTitle": asg.Title,
			"ClassName":       cls.Name,
			"Grade":           *sub.Grade,
			"Feedback":        feedback,
		},
	})
}

// Return hands a graded Submission back to its student.
func (svc *Service) Return(ctx context.Context, caller user.User, submissionID string) (classroom.Submission, error) {
	sub, err := svc.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return classroom.Submission{}, err
	}
	_, acc, err := svc.access(ctx, caller, sub.AssignmentID)
	if err != nil {
		return classroom.Submission{}, err
	}
	if err = acc.Authorize(caller, policy.ManageAssignments); err != nil {
		return classroom.Submission{}, err
	}

	if err = sub.Return(); err != nil {
		return classroom.Submission{}, err
	}
	sub, err = svc.submissions.UpdateSubmission(ctx, sub)
	return sub, errors.Wrap(err, "returning submission")
}

// MySubmissions returns a page of the caller's submissions, newest first, along with their assignments.
func (svc *Service) MySubmissions(ctx context.Context, caller user.User, q classroom.SubmissionQuery, page core.Pagination) ([]MySubmission, int, error) {
	q.AssignmentID = ""
	q.StudentID = caller.ID
	submissions, total, err := svc.submissions.QuerySubmissionsPage(ctx, q, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying submissions")
	}

	summaries := make(map[string]*AssignmentSummary)
	subs := make([]MySubmission, 0, len(submissions))
	for _, sub := range submissions {
		summary, ok := summaries[sub.AssignmentID]
		if !ok {
			asg, err := svc.assignments.GetAssignment(ctx, sub.AssignmentID)
			switch errors.Cause(err) {
			case nil:
				summary = &AssignmentSummary{
					ID:      asg.ID,
					ClassID: asg.ClassID,
					Title:   asg.Title,
					Status:  asg.Status,
					DueDate: asg.DueDate,
					Points:  asg.Points,
				}
			case classroom.ErrAssignmentNotFound:
			default:
				return nil, 0, errors.Wrap(err, "getting assignment")
			}
			summaries[sub.AssignmentID] = summary
		}
		subs = append(subs, MySubmission{Submission: sub, Assignment: summary})
	}
	return subs, total, nil
}
