package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewLogger(conf)
	defer func() { _ = logger.Sync() }()

	// set up DB
	var (
		db      *sql.DB
		usrRepo user.Repository
	)
	switch conf.Storage {
	case core.StorageMemory:
		usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	case core.StorageBolt:
		boltDB, err := inmemdb.OpenFile(conf.Bolt.Path)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up bolt storage: %v", err), err)
		}
		defer boltDB.Close()
		usrRepo = inmemdb.NewUserRepository(boltDB)
	default:
		sqlxDB, err := openDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer sqlxDB.Close()
		db = sqlxDB.DB
		usrRepo = sqlxrepos.NewUserRepository(sqlxDB)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(usrRepo, emailsvc.NewConsoleService(conf, logger), conf),
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		_ = logger.Sync()
		os.Exit(1)
	}
}

func openDB(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	return database.Open(ctx, conf)
}
