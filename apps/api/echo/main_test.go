package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

const testPassword = "K9#mqpLz2!vX"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type testApp struct {
	*server
	conf  *core.Config
	db    *inmemdb.DB
	users user.Repository
	mail  *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T, configure ...func(*core.Config)) *testApp {
	t.Helper()
	conf := core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NopLogger{}

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	classRepo := inmemdb.NewClassRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)
	asgRepo := inmemdb.NewAssignmentRepository(db)
	subRepo := inmemdb.NewSubmissionRepository(db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	classSvc := class.NewService(classRepo, enrRepo, asgRepo, usrRepo, conf)
	asgSvc := assignment.NewService(classSvc, asgRepo, subRepo, usrRepo, mailSvc, logger, conf)

	srv := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DB:             db,
		UserSvc:        usrSvc,
		ClassSvc:       classSvc,
		AssignmentSvc:  asgSvc,
	}).(*server)

	return &testApp{server: srv, conf: conf, db: db, users: usrRepo, mail: mailSvc}
}

func (app *testApp) createUser(t *testing.T, uname string, role user.Role, isActive bool) user.User {
	return testutil.CreateUser(t, app.users, uname, testPassword, role, isActive)
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.tokens.generate(app.tokens.claims(usr))
	require.NoError(t, err)
	return token
}

// do serves the request and returns the recorded response.
func (app *testApp) do(method, path, token string, body ...interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if len(body) > 0 {
		switch b := body[0].(type) {
		case []byte:
			buf.Write(b)
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	require.Equal(t, code, rec.Code, "%s %s", http.StatusText(rec.Code), rec.Body.String())
}
