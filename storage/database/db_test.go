package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func fastPing(t *testing.T, attempts uint64) {
	origAttempts, origBackoff := pingAttempts, pingBackoff
	t.Cleanup(func() { pingAttempts, pingBackoff = origAttempts, origBackoff })
	pingAttempts, pingBackoff = attempts, time.Millisecond
}

func TestURL(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database.Engine = "postgres"
	conf.Database.Host = "db"
	conf.Database.Port = 5433
	conf.Database.User = "app"
	conf.Database.Password = "p@ss"
	conf.Database.AdminUser = "root"
	conf.Database.AdminPassword = "secret"

	conf.Database.DisableTLS = true
	assert.Equal(t, "postgres://app:p%40ss@db:5433/darasa?sslmode=disable&timezone=utc", URL("darasa", false, conf))
	assert.Equal(t, "postgres://root:secret@db:5433/postgres?sslmode=disable&timezone=utc", URL("postgres", true, conf))

	conf.Database.DisableTLS = false
	conf.Database.AdminUser = ""
	assert.Equal(t, "postgres://app:p%40ss@db:5433/postgres?sslmode=require&timezone=utc", URL("postgres", true, conf))
}

func TestPing(t *testing.T) {
	fastPing(t, 3)

	p := &flakyPinger{failures: 2}
	require.NoError(t, ping(context.Background(), p))
	assert.Equal(t, 3, p.calls)

	p = &flakyPinger{failures: 5}
	err := ping(context.Background(), p)
	assert.EqualError(t, err, "DB ping timeout: connection refused")
	assert.Equal(t, 3, p.calls)
}

func TestMigrate(t *testing.T) {
	origRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRun })

	var gotCmd, gotDir string
	var gotArgs []string
	gooseRunFunc = func(command string, _ *sql.DB, dir string, args ...string) error {
		gotCmd, gotDir, gotArgs = command, dir, args
		if command == "down-to" {
			return errors.New("boom")
		}
		return nil
	}

	require.NoError(t, Migrate(nil, "up"))
	assert.Equal(t, "up", gotCmd)
	assert.Equal(t, "migrations", gotDir)
	assert.Empty(t, gotArgs)

	err := Migrate(nil, "down-to", "1")
	assert.EqualError(t, err, "migrating database (down-to): boom")
	assert.Equal(t, []string{"1"}, gotArgs)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"darasa"`, quoteIdent("darasa"))
	assert.Equal(t, `"da""rasa"`, quoteIdent(`da"rasa`))
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
}
