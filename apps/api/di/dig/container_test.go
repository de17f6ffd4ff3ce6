package dig_container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/signal"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	emailsvc "github.com/trezcool/darasa/services/email"
	testutil "github.com/trezcool/darasa/tests"
)

func TestNew(t *testing.T) {
	c := New()
	require.NoError(t, c.Decorate(func(*core.Config) *core.Config { return core.NewTestConfig() }))

	err := c.Invoke(func(srv echoapi.Server, mailSvc core.EmailService, db core.Pinger, closeDB CloseDB, shutdown ShutdownChan) {
		defer signal.Stop(shutdown)
		defer func() { assert.NoError(t, closeDB()) }()

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.IsType(t, emailsvc.NewConsoleService(core.NewTestConfig(), nil), mailSvc)
	})
	require.NoError(t, err)
}

func TestNewStorage_Bolt(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Storage = core.StorageBolt
	conf.Bolt.Path = filepath.Join(t.TempDir(), "darasa.db")

	storage, err := newStorage(conf, testutil.NopLogger{})
	require.NoError(t, err)
	assert.FileExists(t, conf.Bolt.Path)
	assert.NoError(t, storage.DB.PingContext(context.Background()))
	assert.NoError(t, storage.Close())
}
