package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

type classroomFixture struct {
	*testApp
	cls                        classroom.Class
	teacher, student, outsider user.User
	teacherToken, studentToken string
	outsiderToken              string
}

func setupClassroom(t *testing.T) *classroomFixture {
	t.Helper()
	f := &classroomFixture{testApp: setup(t)}
	f.teacher = f.createUser(t, "teacher", user.RoleTeacher, true)
	f.student = f.createUser(t, "student", user.RoleStudent, true)
	f.outsider = f.createUser(t, "outsider", user.RoleStudent, true)
	f.teacherToken = f.getToken(t, f.teacher)
	f.studentToken = f.getToken(t, f.student)
	f.outsiderToken = f.getToken(t, f.outsider)

	f.cls = f.createClass(t, f.teacherToken, "Algebra")
	f.joinClass(t, f.studentToken, f.rotateInviteCode(t, f.teacherToken, f.cls.ID))
	return f
}

func (f *classroomFixture) createAssignment(t *testing.T, na assignment.NewAssignment) classroom.Assignment {
	t.Helper()
	na.ClassID = f.cls.ID
	rec := f.do(http.MethodPost, "/v1/assignments", f.teacherToken, na)
	requireStatus(t, rec, http.StatusCreated)
	var asg classroom.Assignment
	decode(t, rec, &asg)
	return asg
}

func (f *classroomFixture) submit(t *testing.T, token, assignmentID string) classroom.Submission {
	t.Helper()
	rec := f.do(http.MethodPost, "/v1/assignments/"+assignmentID+"/submit", token, assignment.SubmitAssignment{Content: "42"})
	requireStatus(t, rec, http.StatusCreated)
	var sub classroom.Submission
	decode(t, rec, &sub)
	return sub
}

func grade(g float64) *float64 { return &g }

func Test_assignmentApi_create(t *testing.T) {
	f := setupClassroom(t)

	tests := []struct {
		name     string
		token    string
		body     assignment.NewAssignment
		wantCode int
	}{
		{"student", f.studentToken, assignment.NewAssignment{ClassID: f.cls.ID, Title: "HW1"}, http.StatusForbidden},
		{"outsider", f.outsiderToken, assignment.NewAssignment{ClassID: f.cls.ID, Title: "HW1"}, http.StatusForbidden},
		{"unknown class", f.teacherToken, assignment.NewAssignment{ClassID: "unknown", Title: "HW1"}, http.StatusNotFound},
		{"missing title", f.teacherToken, assignment.NewAssignment{ClassID: f.cls.ID}, http.StatusBadRequest},
		{"invalid type", f.teacherToken, assignment.NewAssignment{ClassID: f.cls.ID, Title: "HW1", Type: "essay"}, http.StatusBadRequest},
		{"teacher", f.teacherToken, assignment.NewAssignment{ClassID: f.cls.ID, Title: " HW1 "}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/v1/assignments", tt.token, tt.body)
			requireStatus(t, rec, tt.wantCode)
			if tt.wantCode != http.StatusCreated {
				return
			}
			var asg classroom.Assignment
			decode(t, rec, &asg)
			assert.Equal(t, "HW1", asg.Title)
			assert.Equal(t, f.teacher.ID, asg.CreatedBy)
			assert.Equal(t, classroom.AssignmentDraft, asg.Status)
			assert.Equal(t, classroom.TypeAssignment, asg.Type)
			assert.Equal(t, classroom.DefaultPoints, asg.Points)
			require.NotNil(t, asg.DueDate)
			assert.True(t, asg.DueDate.After(time.Now()))
		})
	}
}

func Test_assignmentApi_visibility(t *testing.T) {
	f := setupClassroom(t)
	draft := f.createAssignment(t, assignment.NewAssignment{Title: "Draft"})
	published := f.createAssignment(t, assignment.NewAssignment{Title: "Published", Status: classroom.AssignmentPublished})

	t.Run("retrieve", func(t *testing.T) {
		tests := []struct {
			name     string
			token    string
			id       string
			wantCode int
		}{
			{"teacher draft", f.teacherToken, draft.ID, http.StatusOK},
			{"student draft", f.studentToken, draft.ID, http.StatusNotFound},
			{"student published", f.studentToken, published.ID, http.StatusOK},
			{"outsider published", f.outsiderToken, published.ID, http.StatusForbidden},
			{"unknown", f.teacherToken, "unknown", http.StatusNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.do(http.MethodGet, "/v1/assignments/"+tt.id, tt.token)
				requireStatus(t, rec, tt.wantCode)
			})
		}
	})

	t.Run("list", func(t *testing.T) {
		tests := []struct {
			name     string
			token    string
			query    string
			wantCode int
			want     []string
		}{
			{"teacher", f.teacherToken, "", http.StatusOK, []string{draft.ID, published.ID}},
			{"teacher drafts", f.teacherToken, "?status=draft", http.StatusOK, []string{draft.ID}},
			{"student", f.studentToken, "", http.StatusOK, []string{published.ID}},
			{"student asking for drafts", f.studentToken, "?status=draft", http.StatusOK, []string{published.ID}},
			{"outsider", f.outsiderToken, "", http.StatusForbidden, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.do(http.MethodGet, "/v1/assignments/class/"+f.cls.ID+tt.query, tt.token)
				requireStatus(t, rec, tt.wantCode)
				if tt.wantCode != http.StatusOK {
					return
				}
				var assignments []classroom.Assignment
				decode(t, rec, &assignments)
				got := make([]string, 0, len(assignments))
				for _, asg := range assignments {
					got = append(got, asg.ID)
				}
				assert.ElementsMatch(t, tt.want, got)
				assert.NotEmpty(t, rec.Header().Get(headerPaginationCount))
			})
		}
	})

	t.Run("class stats", func(t *testing.T) {
		var details class.Details
		decode(t, f.do(http.MethodGet, "/v1/classes/"+f.cls.ID, f.teacherToken), &details)
		assert.Equal(t, 2, details.Stats.Assignments)
		decode(t, f.do(http.MethodGet, "/v1/classes/"+f.cls.ID, f.studentToken), &details)
		assert.Equal(t, 1, details.Stats.Assignments)
	})
}

func Test_assignmentApi_update(t *testing.T) {
	f := setupClassroom(t)
	asg := f.createAssignment(t, assignment.NewAssignment{Title: "HW1"})
	path := "/v1/assignments/" + asg.ID

	tests := []struct {
		name     string
		token    string
		body     string
		wantCode int
	}{
		{"student", f.studentToken, `{"title": "Hacked"}`, http.StatusForbidden},
		{"invalid points", f.teacherToken, `{"points": -1}`, http.StatusBadRequest},
		{"publish", f.teacherToken, `{"status": "published", "points": 50}`, http.StatusOK},
		{"back to draft", f.teacherToken, `{"status": "draft"}`, http.StatusBadRequest},
		{"archive", f.teacherToken, `{"status": "archived"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPut, path, tt.token, tt.body)
			requireStatus(t, rec, tt.wantCode)
		})
	}

	var got classroom.Assignment
	decode(t, f.do(http.MethodGet, path, f.teacherToken), &got)
	assert.Equal(t, "HW1", got.Title)
	assert.Equal(t, 50, got.Points)
	assert.Equal(t, classroom.AssignmentArchived, got.Status)
}

func Test_assignmentApi_submit(t *testing.T) {
	f := setupClassroom(t)
	draft := f.createAssignment(t, assignment.NewAssignment{Title: "Draft"})
	published := f.createAssignment(t, assignment.NewAssignment{Title: "Published", Status: classroom.AssignmentPublished})
	past := time.Now().Add(-time.Hour)
	pastDue := f.createAssignment(t, assignment.NewAssignment{
		Title: "Past due", Status: classroom.AssignmentPublished, DueDate: &past,
	})
	late := f.createAssignment(t, assignment.NewAssignment{
		Title: "Late allowed", Status: classroom.AssignmentPublished, DueDate: &past,
		Settings: &classroom.AssignmentSettings{AllowLateSubmissions: true},
	})

	tests := []struct {
		name       string
		token      string
		id         string
		wantCode   int
		wantErr    string
		wantStatus classroom.SubmissionStatus
	}{
		{"outsider", f.outsiderToken, published.ID, http.StatusForbidden, "permission denied", ""},
		{"draft", f.studentToken, draft.ID, http.StatusBadRequest, assignment.ErrNotAvailable.Error(), ""},
		{"teacher", f.teacherToken, published.ID, http.StatusForbidden, "only enrolled students can submit assignments", ""},
		{"past due", f.studentToken, pastDue.ID, http.StatusBadRequest, assignment.ErrPastDue.Error(), ""},
		{"student", f.studentToken, published.ID, http.StatusCreated, "", classroom.SubmissionSubmitted},
		{"student again", f.studentToken, published.ID, http.StatusConflict, classroom.ErrAlreadySubmitted.Error(), ""},
		{"late", f.studentToken, late.ID, http.StatusCreated, "", classroom.SubmissionLate},
		{"unknown", f.studentToken, "unknown", http.StatusNotFound, "assignment not found", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/v1/assignments/"+tt.id+"/submit", tt.token, assignment.SubmitAssignment{Content: " 42 "})
			requireStatus(t, rec, tt.wantCode)
			if tt.wantErr != "" {
				var got httpErr
				decode(t, rec, &got)
				assert.Equal(t, tt.wantErr, got.Error)
				return
			}
			var sub classroom.Submission
			decode(t, rec, &sub)
			assert.Equal(t, tt.wantStatus, sub.Status)
			assert.Equal(t, f.student.ID, sub.StudentID)
			assert.Equal(t, "42", sub.Content)
			assert.Nil(t, sub.Grade)
		})
	}

	t.Run("activity is recorded", func(t *testing.T) {
		var members []class.Member
		decode(t, f.do(http.MethodGet, "/v1/classes/"+f.cls.ID+"/enrollments", f.teacherToken), &members)
		require.Len(t, members, 1)
		assert.NotNil(t, members[0].LastActivity)
	})

	t.Run("metrics", func(t *testing.T) {
		body := f.do(http.MethodGet, "/metrics", "").Body.String()
		assert.Contains(t, body, `classroom_submissions_total{status="submitted"} 1`)
		assert.Contains(t, body, `classroom_submissions_total{status="late"} 1`)
	})
}

func Test_assignmentApi_grading(t *testing.T) {
	f := setupClassroom(t)
	asg := f.createAssignment(t, assignment.NewAssignment{Title: "HW1", Status: classroom.AssignmentPublished})
	sub := f.submit(t, f.studentToken, asg.ID)
	subPath := "/v1/assignments/submissions/" + sub.ID

	t.Run("view", func(t *testing.T) {
		tests := []struct {
			name     string
			token    string
			wantCode int
		}{
			{"student", f.studentToken, http.StatusOK},
			{"teacher", f.teacherToken, http.StatusOK},
			{"outsider", f.outsiderToken, http.StatusForbidden},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				requireStatus(t, f.do(http.MethodGet, subPath, tt.token), tt.wantCode)
			})
		}
	})

	t.Run("list", func(t *testing.T) {
		requireStatus(t, f.do(http.MethodGet, "/v1/assignments/"+asg.ID+"/submissions", f.studentToken), http.StatusForbidden)

		rec := f.do(http.MethodGet, "/v1/assignments/"+asg.ID+"/submissions", f.teacherToken)
		requireStatus(t, rec, http.StatusOK)
		var subs []assignment.StudentSubmission
		decode(t, rec, &subs)
		require.Len(t, subs, 1)
		require.NotNil(t, subs[0].Student)
		assert.Equal(t, "student", subs[0].Student.Username)
	})

	t.Run("return before grading", func(t *testing.T) {
		rec := f.do(http.MethodPost, subPath+"/return", f.teacherToken)
		requireStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("grade", func(t *testing.T) {
		tests := []struct {
			name     string
			token    string
			body     interface{}
			wantCode int
		}{
			{"student", f.studentToken, assignment.GradeSubmission{Grade: grade(100)}, http.StatusForbidden},
			{"missing grade", f.teacherToken, `{"feedback": "nice"}`, http.StatusBadRequest},
			{"too high", f.teacherToken, assignment.GradeSubmission{Grade: grade(101)}, http.StatusBadRequest},
			{"negative", f.teacherToken, assignment.GradeSubmission{Grade: grade(-1)}, http.StatusBadRequest},
			{"ok", f.teacherToken, assignment.GradeSubmission{Grade: grade(95), Feedback: " Nice work "}, http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.do(http.MethodPost, subPath+"/grade", tt.token, tt.body)
				requireStatus(t, rec, tt.wantCode)
			})
		}

		var got classroom.Submission
		decode(t, f.do(http.MethodGet, subPath, f.studentToken), &got)
		assert.Equal(t, classroom.SubmissionGraded, got.Status)
		require.NotNil(t, got.Grade)
		assert.Equal(t, 95.0, *got.Grade)
		require.NotNil(t, got.Feedback)
		assert.Equal(t, "Nice work", *got.Feedback)
		require.NotNil(t, got.GradedBy)
		assert.Equal(t, f.teacher.ID, *got.GradedBy)
		assert.NotNil(t, got.GradedAt)

		sent := f.mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, f.student.Email, sent[0].To[0].Address)
		assert.Equal(t, "submission_graded", sent[0].TemplateName)
	})

	t.Run("regrade without notifications", func(t *testing.T) {
		f.mail.Reset()
		rec := f.do(http.MethodPut, "/v1/classes/"+f.cls.ID, f.teacherToken, `{"settings": {"notifications_enabled": false}}`)
		requireStatus(t, rec, http.StatusOK)

		rec = f.do(http.MethodPost, subPath+"/grade", f.teacherToken, assignment.GradeSubmission{Grade: grade(97)})
		requireStatus(t, rec, http.StatusOK)
		assert.Empty(t, f.mail.SentMessages())
	})

	t.Run("return", func(t *testing.T) {
		requireStatus(t, f.do(http.MethodPost, subPath+"/return", f.studentToken), http.StatusForbidden)

		rec := f.do(http.MethodPost, subPath+"/return", f.teacherToken)
		requireStatus(t, rec, http.StatusOK)
		var got classroom.Submission
		decode(t, rec, &got)
		assert.Equal(t, classroom.SubmissionReturned, got.Status)
		assert.Equal(t, 97.0, *got.Grade)

		requireStatus(t, f.do(http.MethodPost, subPath+"/return", f.teacherToken), http.StatusBadRequest)
	})

	t.Run("my submissions", func(t *testing.T) {
		other := f.createAssignment(t, assignment.NewAssignment{Title: "HW2", Status: classroom.AssignmentPublished})
		f.submit(t, f.studentToken, other.ID)

		rec := f.do(http.MethodGet, "/v1/assignments/submissions/my?page_size=1", f.studentToken)
		requireStatus(t, rec, http.StatusOK)
		assert.Equal(t, "2", rec.Header().Get(headerPaginationCount))
		var mine []assignment.MySubmission
		decode(t, rec, &mine)
		require.Len(t, mine, 1)
		require.NotNil(t, mine[0].Assignment)
		assert.Equal(t, "HW2", mine[0].Assignment.Title)

		rec = f.do(http.MethodGet, "/v1/assignments/submissions/my?status=returned", f.studentToken)
		decode(t, rec, &mine)
		require.Len(t, mine, 1)
		assert.Equal(t, sub.ID, mine[0].ID)

		rec = f.do(http.MethodGet, "/v1/assignments/submissions/my", f.outsiderToken)
		requireStatus(t, rec, http.StatusOK)
		assert.Equal(t, "[]\n", rec.Body.String())
	})
}
