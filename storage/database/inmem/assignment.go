package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

type assignmentRepository struct {
	db *DB
}

var _ classroom.AssignmentRepository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, asg classroom.Assignment) (classroom.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes.get(asg.ClassID); !ok {
		return classroom.Assignment{}, classroom.ErrClassNotFound
	}
	asg.ID = newID()
	if err := repo.db.assignments.insert(asg.ID, asg); err != nil {
		return classroom.Assignment{}, err
	}
	return asg, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (classroom.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if !validID(id) {
		return classroom.Assignment{}, classroom.ErrAssignmentNotFound
	}
	asg, ok := repo.db.assignments.get(id)
	if !ok {
		return classroom.Assignment{}, classroom.ErrAssignmentNotFound
	}
	return asg, nil
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, q classroom.AssignmentQuery, page core.Pagination) ([]classroom.Assignment, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := repo.db.assignments.filter(func(a classroom.Assignment) bool {
		if q.ClassID != "" && a.ClassID != q.ClassID {
			return false
		}
		return len(q.Status) == 0 || containsStatus(q.Status, a.Status)
	})
	// due_date ASC NULLS LAST, created_at DESC
	reverse(assignments)
	sort.SliceStable(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		switch {
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return paginate(assignments, page), len(assignments), nil
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, asg classroom.Assignment) (classroom.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.assignments.get(asg.ID)
	if !ok {
		return classroom.Assignment{}, classroom.ErrAssignmentNotFound
	}
	// class and creator never change
	asg.ClassID = orig.ClassID
	asg.CreatedBy = orig.CreatedBy
	asg.CreatedAt = orig.CreatedAt
	if err := repo.db.assignments.set(asg.ID, asg); err != nil {
		return classroom.Assignment{}, err
	}
	return asg, nil
}

type submissionRepository struct {
	db *DB
}

var _ classroom.SubmissionRepository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) find(assignmentID, studentID string) (classroom.Submission, bool) {
	return repo.db.submissions.find(func(s classroom.Submission) bool {
		return s.AssignmentID == assignmentID && s.StudentID == studentID
	})
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, sub classroom.Submission) (classroom.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments.get(sub.AssignmentID); !ok {
		return classroom.Submission{}, classroom.ErrAssignmentNotFound
	}
	if _, ok := repo.find(sub.AssignmentID, sub.StudentID); ok {
		return classroom.Submission{}, classroom.ErrAlreadySubmitted
	}
	sub.ID = newID()
	if err := repo.db.submissions.insert(sub.ID, sub); err != nil {
		return classroom.Submission{}, err
	}
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (classroom.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if !validID(id) {
		return classroom.Submission{}, classroom.ErrSubmissionNotFound
	}
	sub, ok := repo.db.submissions.get(id)
	if !ok {
		return classroom.Submission{}, classroom.ErrSubmissionNotFound
	}
	return sub, nil
}

func (repo *submissionRepository) FindSubmission(_ context.Context, assignmentID, studentID string) (classroom.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sub, ok := repo.find(assignmentID, studentID)
	if !ok {
		return classroom.Submission{}, classroom.ErrSubmissionNotFound
	}
	return sub, nil
}

func (repo *submissionRepository) filter(q classroom.SubmissionQuery) []classroom.Submission {
	return repo.db.submissions.filter(func(s classroom.Submission) bool {
		if q.AssignmentID != "" && s.AssignmentID != q.AssignmentID {
			return false
		}
		if q.StudentID != "" && s.StudentID != q.StudentID {
			return false
		}
		return len(q.Status) == 0 || containsStatus(q.Status, s.Status)
	})
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, q classroom.SubmissionQuery) ([]classroom.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	submissions := repo.filter(q)
	sort.SliceStable(submissions, func(i, j int) bool { return submissions[i].SubmittedAt.Before(submissions[j].SubmittedAt) })
	return submissions, nil
}

func (repo *submissionRepository) QuerySubmissionsPage(_ context.Context, q classroom.SubmissionQuery, page core.Pagination) ([]classroom.Submission, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	submissions := repo.filter(q)
	reverse(submissions)
	sort.SliceStable(submissions, func(i, j int) bool { return submissions[i].SubmittedAt.After(submissions[j].SubmittedAt) })
	return paginate(submissions, page), len(submissions), nil
}

func (repo *submissionRepository) UpdateSubmission(_ context.Context, sub classroom.Submission) (classroom.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.submissions.get(sub.ID)
	if !ok {
		return classroom.Submission{}, classroom.ErrSubmissionNotFound
	}
	orig.Status = sub.Status
	orig.Grade = sub.Grade
	orig.Feedback = sub.Feedback
	orig.GradedBy = sub.GradedBy
	orig.GradedAt = sub.GradedAt
	if err := repo.db.submissions.set(orig.ID, orig); err != nil {
		return classroom.Submission{}, err
	}
	return orig, nil
}
