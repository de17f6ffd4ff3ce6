package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

const assignmentColumns = `id, class_id, created_by, title, description, type, status, due_date, points, settings, created_at, updated_at`

type assignmentRow struct {
	ID          string         `db:"id"`
	ClassID     string         `db:"class_id"`
	CreatedBy   string         `db:"created_by"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Type        string         `db:"type"`
	Status      string         `db:"status"`
	DueDate     null.Time      `db:"due_date"`
	Points      int            `db:"points"`
	Settings    types.JSONText `db:"settings"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toAssignmentRow(asg classroom.Assignment) (assignmentRow, error) {
	settings, err := json.Marshal(asg.Settings)
	if err != nil {
		return assignmentRow{}, errors.Wrap(err, "encoding assignment settings")
	}
	return assignmentRow{
		ID:          asg.ID,
		ClassID:     asg.ClassID,
		CreatedBy:   asg.CreatedBy,
		Title:       asg.Title,
		Description: asg.Description,
		Type:        string(asg.Type),
		Status:      string(asg.Status),
		DueDate:     null.TimeFromPtr(asg.DueDate),
		Points:      asg.Points,
		Settings:    settings,
		CreatedAt:   asg.CreatedAt.UTC(),
		UpdatedAt:   asg.UpdatedAt.UTC(),
	}, nil
}

func (r assignmentRow) toAssignment() (classroom.Assignment, error) {
	asg := classroom.Assignment{
		ID:          r.ID,
		ClassID:     r.ClassID,
		CreatedBy:   r.CreatedBy,
		Title:       r.Title,
		Description: r.Description,
		Type:        classroom.AssignmentType(r.Type),
		Status:      classroom.AssignmentStatus(r.Status),
		DueDate:     utcPtr(r.DueDate),
		Points:      r.Points,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if err := r.Settings.Unmarshal(&asg.Settings); err != nil {
		return classroom.Assignment{}, errors.Wrap(err, "decoding assignment settings")
	}
	return asg, nil
}

type assignmentRepository struct {
	exec Executor
}

var _ classroom.AssignmentRepository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec Executor) *assignmentRepository {
	return &assignmentRepository{exec: exec}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg classroom.Assignment) (classroom.Assignment, error) {
	if !validID(asg.ClassID) {
		return classroom.Assignment{}, classroom.ErrClassNotFound
	}
	asg.ID = uuid.New().String()
	row, err := toAssignmentRow(asg)
	if err != nil {
		return classroom.Assignment{}, err
	}
	_, err = sqlx.NamedExecContext(ctx, repo.exec, `
		INSERT INTO assignment (`+assignmentColumns+`)
		VALUES (:id, :class_id, :created_by, :title, :description, :type, :status, :due_date, :points, :settings, :created_at, :updated_at)`,
		row)
	if err != nil {
		return classroom.Assignment{}, trapConstraintErr(err, "inserting assignment")
	}
	return asg, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (classroom.Assignment, error) {
	if !validID(id) {
		return classroom.Assignment{}, classroom.ErrAssignmentNotFound
	}
	var row assignmentRow
	err := sqlx.GetContext(ctx, repo.exec, &row, repo.exec.Rebind(
		`SELECT `+assignmentColumns+` FROM assignment WHERE id = ?`), id)
	if err != nil {
		return classroom.Assignment{}, trapNoRowsErr(err, classroom.ErrAssignmentNotFound, "getting assignment")
	}
	return row.toAssignment()
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, q classroom.AssignmentQuery, page core.Pagination) ([]classroom.Assignment, int, error) {
	w := &where{}
	if q.ClassID != "" {
		if !validID(q.ClassID) {
			return []classroom.Assignment{}, 0, nil
		}
		w.add("class_id = ?", q.ClassID)
	}
	if len(q.Status) > 0 {
		w.add("status IN (?)", toStrings(q.Status))
	}

	countQ, countArgs, err := w.build(repo.exec, `SELECT COUNT(*) FROM assignment`+w.String())
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = sqlx.GetContext(ctx, repo.exec, &total, countQ, countArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "counting assignments")
	}

	query, args, err := w.build(
		repo.exec,
		`SELECT `+assignmentColumns+` FROM assignment`+w.String()+
			` ORDER BY due_date ASC NULLS LAST, created_at DESC LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	var rows []assignmentRow
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying assignments")
	}

	assignments := make([]classroom.Assignment, 0, len(rows))
	for _, row := range rows {
		asg, err := row.toAssignment()
		if err != nil {
			return nil, 0, err
		}
		assignments = append(assignments, asg)
	}
	return assignments, total, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, asg classroom.Assignment) (classroom.Assignment, error) {
	if !validID(asg.ID) {
		return classroom.Assignment{}, classroom.ErrAssignmentNotFound
	}
	row, err := toAssignmentRow(asg)
	if err != nil {
		return classroom.Assignment{}, err
	}

	// class and creator never change
	var updated assignmentRow
	err = sqlx.GetContext(ctx, repo.exec, &updated, repo.exec.Rebind(`
		UPDATE assignment
		SET title = ?, description = ?, type = ?, status = ?, due_date = ?, points = ?, settings = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+assignmentColumns),
		row.Title, row.Description, row.Type, row.Status, row.DueDate, row.Points, row.Settings, row.UpdatedAt, row.ID)
	if err != nil {
		return classroom.Assignment{}, trapNoRowsErr(err, classroom.ErrAssignmentNotFound, "updating assignment")
	}
	return updated.toAssignment()
}

const submissionColumns = `id, assignment_id, student_id, content, status, submitted_at, grade, feedback, graded_by, graded_at`

type submissionRow struct {
	ID           string       `db:"id"`
	AssignmentID string       `db:"assignment_id"`
	StudentID    string       `db:"student_id"`
	Content      string       `db:"content"`
	Status       string       `db:"status"`
	SubmittedAt  time.Time    `db:"submitted_at"`
	Grade        null.Float64 `db:"grade"`
	Feedback     null.String  `db:"feedback"`
	GradedBy     null.String  `db:"graded_by"`
	GradedAt     null.Time    `db:"graded_at"`
}

func toSubmissionRow(sub classroom.Submission) submissionRow {
	return submissionRow{
		ID:           sub.ID,
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		Content:      sub.Content,
		Status:       string(sub.Status),
		SubmittedAt:  sub.SubmittedAt.UTC(),
		Grade:        null.Float64FromPtr(sub.Grade),
		Feedback:     null.StringFromPtr(sub.Feedback),
		GradedBy:     null.StringFromPtr(sub.GradedBy),
		GradedAt:     null.TimeFromPtr(sub.GradedAt),
	}
}

func (r submissionRow) toSubmission() classroom.Submission {
	return classroom.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Content:      r.Content,
		Status:       classroom.SubmissionStatus(r.Status),
		SubmittedAt:  r.SubmittedAt.UTC(),
		Grade:        r.Grade.Ptr(),
		Feedback:     r.Feedback.Ptr(),
		GradedBy:     r.GradedBy.Ptr(),
		GradedAt:     utcPtr(r.GradedAt),
	}
}

type submissionRepository struct {
	exec Executor
}

var _ classroom.SubmissionRepository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec Executor) *submissionRepository {
	return &submissionRepository{exec: exec}
}

func (repo *submissionRepository) get(ctx context.Context, query string, args ...interface{}) (classroom.Submission, error) {
	var row submissionRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, repo.exec.Rebind(query), args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return classroom.Submission{}, classroom.ErrSubmissionNotFound
		}
		return classroom.Submission{}, errors.Wrap(err, "getting submission")
	}
	return row.toSubmission(), nil
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, sub classroom.Submission) (classroom.Submission, error) {
	if !validID(sub.AssignmentID) {
		return classroom.Submission{}, classroom.ErrAssignmentNotFound
	}
	sub.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, repo.exec, `
		INSERT INTO submission (`+submissionColumns+`)
		VALUES (:id, :assignment_id, :student_id, :content, :status, :submitted_at, :grade, :feedback, :graded_by, :graded_at)`,
		toSubmissionRow(sub))
	if err != nil {
		return classroom.Submission{}, trapConstraintErr(err, "inserting submission")
	}
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (classroom.Submission, error) {
	if !validID(id) {
		return classroom.Submission{}, classroom.ErrSubmissionNotFound
	}
	return repo.get(ctx, `SELECT `+submissionColumns+` FROM submission WHERE id = ?`, id)
}

func (repo *submissionRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (classroom.Submission, error) {
	if !validID(assignmentID) || !validID(studentID) {
		return classroom.Submission{}, classroom.ErrSubmissionNotFound
	}
	return repo.get(ctx,
		`SELECT `+submissionColumns+` FROM submission WHERE assignment_id = ? AND student_id = ?`,
		assignmentID, studentID)
}

// submissionWhere returns false when an id filter can match no row.
func submissionWhere(q classroom.SubmissionQuery) (*where, bool) {
	w := &where{}
	for _, f := range []struct{ col, id string }{
		{col: "assignment_id", id: q.AssignmentID},
		{col: "student_id", id: q.StudentID},
	} {
		if f.id == "" {
			continue
		}
		if !validID(f.id) {
			return nil, false
		}
		w.add(f.col+" = ?", f.id)
	}
	if len(q.Status) > 0 {
		w.add("status IN (?)", toStrings(q.Status))
	}
	return w, true
}

func (repo *submissionRepository) selectSubmissions(ctx context.Context, query string, args []interface{}) ([]classroom.Submission, error) {
	var rows []submissionRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]classroom.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toSubmission())
	}
	return subs, nil
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, q classroom.SubmissionQuery) ([]classroom.Submission, error) {
	w, ok := submissionWhere(q)
	if !ok {
		return []classroom.Submission{}, nil
	}
	query, args, err := w.build(repo.exec, `SELECT `+submissionColumns+` FROM submission`+w.String()+` ORDER BY submitted_at`)
	if err != nil {
		return nil, err
	}
	return repo.selectSubmissions(ctx, query, args)
}

func (repo *submissionRepository) QuerySubmissionsPage(ctx context.Context, q classroom.SubmissionQuery, page core.Pagination) ([]classroom.Submission, int, error) {
	w, ok := submissionWhere(q)
	if !ok {
		return []classroom.Submission{}, 0, nil
	}

	countQ, countArgs, err := w.build(repo.exec, `SELECT COUNT(*) FROM submission`+w.String())
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = sqlx.GetContext(ctx, repo.exec, &total, countQ, countArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "counting submissions")
	}

	query, args, err := w.build(
		repo.exec,
		`SELECT `+submissionColumns+` FROM submission`+w.String()+` ORDER BY submitted_at DESC, id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	subs, err := repo.selectSubmissions(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

func (repo *submissionRepository) UpdateSubmission(ctx context.Context, sub classroom.Submission) (classroom.Submission, error) {
	if !validID(sub.ID) {
		return classroom.Submission{}, classroom.ErrSubmissionNotFound
	}
	row := toSubmissionRow(sub)
	return repo.get(ctx, `
		UPDATE submission SET status = ?, grade = ?, feedback = ?, graded_by = ?, graded_at = ?
		WHERE id = ?
		RETURNING `+submissionColumns,
		row.Status, row.Grade, row.Feedback, row.GradedBy, row.GradedAt, row.ID)
}
