package dig_container

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

const dbSetupTimeout = time.Minute

// ShutdownChan receives the OS termination signals, and the shutdown requests of the API server.
type ShutdownChan chan os.Signal

// CloseDB releases the storage.
type CloseDB func() error

// Storage provides the repositories of the configured storage engine.
type Storage struct {
	dig.Out

	DB          core.Pinger
	Close       CloseDB
	Users       user.Repository
	Classes     classroom.ClassRepository
	Enrollments classroom.EnrollmentRepository
	Assignments classroom.AssignmentRepository
	Submissions classroom.SubmissionRepository
}

func newLogger(conf *core.Config) (*logsvc.Logger, core.Logger) {
	logger := logsvc.NewLogger(conf)
	return logger, logger
}

func newInmemStorage(db *inmemdb.DB) Storage {
	return Storage{
		DB:          db,
		Close:       db.Close,
		Users:       inmemdb.NewUserRepository(db),
		Classes:     inmemdb.NewClassRepository(db),
		Enrollments: inmemdb.NewEnrollmentRepository(db),
		Assignments: inmemdb.NewAssignmentRepository(db),
		Submissions: inmemdb.NewSubmissionRepository(db),
	}
}

func newStorage(conf *core.Config, logger core.Logger) (Storage, error) {
	switch conf.Storage {
	case core.StorageMemory:
		logger.Warn("using memory storage: data will be lost on shutdown")
		return newInmemStorage(inmemdb.Open()), nil
	case core.StorageBolt:
		db, err := inmemdb.OpenFile(conf.Bolt.Path)
		if err != nil {
			return Storage{}, errors.Wrap(err, "setting up bolt storage")
		}
		logger.Info("using bolt storage: " + conf.Bolt.Path)
		return newInmemStorage(db), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return Storage{}, errors.Wrap(err, "setting up database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return Storage{}, errors.Wrap(err, "setting up database")
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return Storage{}, errors.Wrap(err, "setting up database")
	}

	return Storage{
		DB:          db,
		Close:       db.Close,
		Users:       sqlxrepos.NewUserRepository(db),
		Classes:     sqlxrepos.NewClassRepository(db),
		Enrollments: sqlxrepos.NewEnrollmentRepository(db),
		Assignments: sqlxrepos.NewAssignmentRepository(db),
		Submissions: sqlxrepos.NewSubmissionRepository(db),
	}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newShutdownChan() ShutdownChan {
	shutdown := make(ShutdownChan, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	DB            core.Pinger
	Shutdown      ShutdownChan
	UserSvc       *user.Service
	ClassSvc      *class.Service
	AssignmentSvc *assignment.Service
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Address:       p.Conf.Server.Host,
		Shutdown:      p.Shutdown,
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		DB:            p.DB,
		UserSvc:       p.UserSvc,
		ClassSvc:      p.ClassSvc,
		AssignmentSvc: p.AssignmentSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(assignment.NewService))
	must(c.Provide(newShutdownChan))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
