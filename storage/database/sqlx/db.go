// Package sqlxrepos implements the repositories on postgres with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

// Executor is satisfied by *sqlx.DB and *sqlx.Tx.
type Executor interface {
	sqlx.ExtContext
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// constraintErrors maps the schema constraints to the domain errors they enforce.
var constraintErrors = map[string]error{
	"user_username_key":                       user.ErrUsernameExists,
	"user_email_key":                          user.ErrEmailExists,
	"class_class_code_key":                    classroom.ErrClassCodeTaken,
	"class_invite_code_key":                   classroom.ErrInviteCodeTaken,
	"enrollment_user_id_class_id_key":         classroom.ErrAlreadyEnrolled,
	"enrollment_class_id_fkey":                classroom.ErrClassNotFound,
	"assignment_class_id_fkey":                classroom.ErrClassNotFound,
	"submission_assignment_id_student_id_key": classroom.ErrAlreadySubmitted,
	"submission_assignment_id_fkey":           classroom.ErrAssignmentNotFound,
}

// trapConstraintErr maps unique and foreign key violations to their domain error.
func trapConstraintErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == uniqueViolation || pqErr.Code == foreignKeyViolation) {
		if domainErr, ok := constraintErrors[pqErr.Constraint]; ok {
			return domainErr
		}
	}
	return errors.Wrap(err, msg)
}

// trapNoRowsErr maps psql "no rows" err to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// validID reports whether id could be a primary key: postgres rejects malformed UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// where accumulates `?` conditions, rebound to the driver's bindvars once built.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// build expands slice args (IN clauses) and rebinds the query for exec.
func (w *where) build(exec Executor, query string, extra ...interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, append(append([]interface{}{}, w.args...), extra...)...)
	if err != nil {
		return "", nil, errors.Wrap(err, "building query")
	}
	return exec.Rebind(q), args, nil
}

func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	cols := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		cols = append(cols, ord.String())
	}
	return " ORDER BY " + strings.Join(cols, ", ")
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func toStrings[S ~string](list []S) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, string(s))
	}
	return out
}
