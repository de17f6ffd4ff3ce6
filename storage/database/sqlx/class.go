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

const classColumns = `id, owner_id, name, description, class_code, invite_code, invite_code_expires_at, status, settings, created_at, updated_at`

type classRow struct {
	ID                  string         `db:"id"`
	OwnerID             string         `db:"owner_id"`
	Name                string         `db:"name"`
	Description         string         `db:"description"`
	ClassCode           string         `db:"class_code"`
	InviteCode          null.String    `db:"invite_code"`
	InviteCodeExpiresAt null.Time      `db:"invite_code_expires_at"`
	Status              string         `db:"status"`
	Settings            types.JSONText `db:"settings"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func toClassRow(cls classroom.Class) (classRow, error) {
	settings, err := json.Marshal(cls.Settings)
	if err != nil {
		return classRow{}, errors.Wrap(err, "encoding class settings")
	}
	return classRow{
		ID:                  cls.ID,
		OwnerID:             cls.OwnerID,
		Name:                cls.Name,
		Description:         cls.Description,
		ClassCode:           cls.ClassCode,
		InviteCode:          null.NewString(cls.InviteCode, cls.InviteCode != ""),
		InviteCodeExpiresAt: null.TimeFromPtr(cls.InviteCodeExpiresAt),
		Status:              string(cls.Status),
		Settings:            settings,
		CreatedAt:           cls.CreatedAt.UTC(),
		UpdatedAt:           cls.UpdatedAt.UTC(),
	}, nil
}

func (r classRow) toClass() (classroom.Class, error) {
	cls := classroom.Class{
		ID:                  r.ID,
		OwnerID:             r.OwnerID,
		Name:                r.Name,
		Description:         r.Description,
		ClassCode:           r.ClassCode,
		InviteCode:          r.InviteCode.String,
		InviteCodeExpiresAt: utcPtr(r.InviteCodeExpiresAt),
		Status:              classroom.ClassStatus(r.Status),
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	if err := r.Settings.Unmarshal(&cls.Settings); err != nil {
		return classroom.Class{}, errors.Wrap(err, "decoding class settings")
	}
	return cls, nil
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

type classRepository struct {
	exec Executor
}

var _ classroom.ClassRepository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(exec Executor) *classRepository {
	return &classRepository{exec: exec}
}

// get scans a single class row, from a SELECT or an UPDATE ... RETURNING.
func (repo *classRepository) get(ctx context.Context, query string, args ...interface{}) (classroom.Class, error) {
	var row classRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, repo.exec.Rebind(query), args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return classroom.Class{}, classroom.ErrClassNotFound
		}
		return classroom.Class{}, trapConstraintErr(err, "getting class")
	}
	return row.toClass()
}

func (repo *classRepository) CreateClass(ctx context.Context, cls classroom.Class) (classroom.Class, error) {
	cls.ID = uuid.New().String()
	row, err := toClassRow(cls)
	if err != nil {
		return classroom.Class{}, err
	}
	_, err = sqlx.NamedExecContext(ctx, repo.exec, `
		INSERT INTO class (`+classColumns+`)
		VALUES (:id, :owner_id, :name, :description, :class_code, :invite_code, :invite_code_expires_at, :status, :settings, :created_at, :updated_at)`,
		row)
	if err != nil {
		return classroom.Class{}, trapConstraintErr(err, "inserting class")
	}
	return cls, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string) (classroom.Class, error) {
	if !validID(id) {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	return repo.get(ctx, `SELECT `+classColumns+` FROM class WHERE id = ?`, id)
}

func (repo *classRepository) GetClassByInviteCode(ctx context.Context, code string) (classroom.Class, error) {
	if code == "" {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	return repo.get(ctx, `SELECT `+classColumns+` FROM class WHERE invite_code = ?`, code)
}

func (repo *classRepository) QueryClasses(ctx context.Context, q classroom.ClassQuery, page core.Pagination) ([]classroom.Class, int, error) {
	w := &where{}
	if q.MemberID != "" {
		if !validID(q.MemberID) {
			return []classroom.Class{}, 0, nil
		}
		w.add(
			"(owner_id = ? OR id IN (SELECT class_id FROM enrollment WHERE user_id = ? AND status = ?))",
			q.MemberID, q.MemberID, string(classroom.EnrollmentActive))
	}
	if len(q.Status) > 0 {
		w.add("status IN (?)", toStrings(q.Status))
	}
	if q.Search != "" {
		val := likePattern(q.Search)
		w.add("(name ILIKE ? OR description ILIKE ? OR class_code ILIKE ?)", val, val, val)
	}

	countQ, countArgs, err := w.build(repo.exec, `SELECT COUNT(*) FROM class`+w.String())
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = sqlx.GetContext(ctx, repo.exec, &total, countQ, countArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "counting classes")
	}

	query, args, err := w.build(
		repo.exec,
		`SELECT `+classColumns+` FROM class`+w.String()+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	var rows []classRow
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying classes")
	}

	classes := make([]classroom.Class, 0, len(rows))
	for _, row := range rows {
		cls, err := row.toClass()
		if err != nil {
			return nil, 0, err
		}
		classes = append(classes, cls)
	}
	return classes, total, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls classroom.Class) (classroom.Class, error) {
	if !validID(cls.ID) {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	row, err := toClassRow(cls)
	if err != nil {
		return classroom.Class{}, err
	}
	return repo.get(ctx, `
		UPDATE class SET name = ?, description = ?, status = ?, settings = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+classColumns,
		row.Name, row.Description, row.Status, row.Settings, row.UpdatedAt, row.ID)
}

func (repo *classRepository) SetInviteCode(ctx context.Context, cls classroom.Class) (classroom.Class, error) {
	if !validID(cls.ID) {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	row, err := toClassRow(cls)
	if err != nil {
		return classroom.Class{}, err
	}
	return repo.get(ctx, `
		UPDATE class SET invite_code = ?, invite_code_expires_at = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+classColumns,
		row.InviteCode, row.InviteCodeExpiresAt, row.UpdatedAt, row.ID)
}

const enrollmentColumns = `id, class_id, user_id, role, status, joined_at, last_activity`

type enrollmentRow struct {
	ID           string    `db:"id"`
	ClassID      string    `db:"class_id"`
	UserID       string    `db:"user_id"`
	Role         string    `db:"role"`
	Status       string    `db:"status"`
	JoinedAt     time.Time `db:"joined_at"`
	LastActivity null.Time `db:"last_activity"`
}

func toEnrollmentRow(enr classroom.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:           enr.ID,
		ClassID:      enr.ClassID,
		UserID:       enr.UserID,
		Role:         string(enr.Role),
		Status:       string(enr.Status),
		JoinedAt:     enr.JoinedAt.UTC(),
		LastActivity: null.TimeFromPtr(enr.LastActivity),
	}
}

func (r enrollmentRow) toEnrollment() classroom.Enrollment {
	return classroom.Enrollment{
		ID:           r.ID,
		ClassID:      r.ClassID,
		UserID:       r.UserID,
		Role:         classroom.EnrollmentRole(r.Role),
		Status:       classroom.EnrollmentStatus(r.Status),
		JoinedAt:     r.JoinedAt.UTC(),
		LastActivity: utcPtr(r.LastActivity),
	}
}

type enrollmentRepository struct {
	exec Executor
}

var _ classroom.EnrollmentRepository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec Executor) *enrollmentRepository {
	return &enrollmentRepository{exec: exec}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, enr classroom.Enrollment) (classroom.Enrollment, error) {
	if !validID(enr.ClassID) {
		return classroom.Enrollment{}, classroom.ErrClassNotFound
	}
	enr.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, repo.exec, `
		INSERT INTO enrollment (`+enrollmentColumns+`)
		VALUES (:id, :class_id, :user_id, :role, :status, :joined_at, :last_activity)`,
		toEnrollmentRow(enr))
	if err != nil {
		return classroom.Enrollment{}, trapConstraintErr(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, classID, userID string) (classroom.Enrollment, error) {
	if !validID(classID) || !validID(userID) {
		return classroom.Enrollment{}, classroom.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	err := sqlx.GetContext(ctx, repo.exec, &row, repo.exec.Rebind(
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE class_id = ? AND user_id = ?`),
		classID, userID)
	if err != nil {
		return classroom.Enrollment{}, trapNoRowsErr(err, classroom.ErrEnrollmentNotFound, "getting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, classID string) ([]classroom.Enrollment, error) {
	if !validID(classID) {
		return []classroom.Enrollment{}, nil
	}
	var rows []enrollmentRow
	err := sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE class_id = ? ORDER BY joined_at`),
		classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]classroom.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.toEnrollment())
	}
	return enrollments, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, enr classroom.Enrollment) (classroom.Enrollment, error) {
	if !validID(enr.ID) {
		return classroom.Enrollment{}, classroom.ErrEnrollmentNotFound
	}
	row := toEnrollmentRow(enr)
	var updated enrollmentRow
	err := sqlx.GetContext(ctx, repo.exec, &updated, repo.exec.Rebind(`
		UPDATE enrollment SET role = ?, status = ?, last_activity = ?
		WHERE id = ?
		RETURNING `+enrollmentColumns),
		row.Role, row.Status, row.LastActivity, row.ID)
	if err != nil {
		return classroom.Enrollment{}, trapNoRowsErr(err, classroom.ErrEnrollmentNotFound, "updating enrollment")
	}
	return updated.toEnrollment(), nil
}

func (repo *enrollmentRepository) TouchEnrollment(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return nil
	}
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`
		UPDATE enrollment SET last_activity = ?
		WHERE id = ? AND status = ?`),
		at, id, string(classroom.EnrollmentActive))
	return errors.Wrap(err, "touching enrollment")
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, classID, userID string) error {
	if !validID(classID) || !validID(userID) {
		return classroom.ErrEnrollmentNotFound
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		`DELETE FROM enrollment WHERE class_id = ? AND user_id = ?`),
		classID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return classroom.ErrEnrollmentNotFound
	}
	return nil
}
