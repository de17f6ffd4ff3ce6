package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
	StorageBolt     = "bolt"
)

type Config struct {
	Env                       string // DEV (local; default), TEST, QA, PROD
	Debug                     bool
	TestMode                  bool
	AppName                   string
	Build                     string
	SecretKey                 string
	DefaultFromEmail          mail.Address
	FrontendBaseURL           string
	RollbarToken              string
	SendgridApiKey            string
	Storage                   string
	PasswordResetTimeoutDelta time.Duration

	Log struct {
		File string
	}

	Server struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimit                 float64 // requests per second per client IP, 0 disables
		RateBurst                 int
	}

	Classroom struct {
		InviteCodeTTL   time.Duration // 0: invite codes never expire
		DefaultDueDelta time.Duration
		CodeMaxAttempts int
	}

	Bolt struct {
		Path string
	}

	Database struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}
}

// DatabaseAddress returns the database "host:port".
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port))
}

// NewConfig reads the configuration from defaults, `config/.env.<env>` and the environment,
// in that order of precedence (last wins). Environment variables are prefixed with $ENV: DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k3t!w9z#bq2_m7(x)e0v$c5@n8h+ru6p&j1y^d4l*a=fgs")
	v.SetDefault("defaultFromEmail", "Darasa <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("storage", StoragePostgres)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("log.file", "")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.rateLimit", 5.0)
	v.SetDefault("server.rateBurst", 10)

	v.SetDefault("classroom.inviteCodeTTL", time.Duration(0))
	v.SetDefault("classroom.defaultDueDelta", 7*24*time.Hour)
	v.SetDefault("classroom.codeMaxAttempts", 8)

	v.SetDefault("bolt.path", filepath.Join("data", "darasa.db"))

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.user", "darasa")
	v.SetDefault("database.password", "darasa")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		Storage:                   v.GetString("storage"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	conf.DefaultFromEmail = *from

	conf.Log.File = v.GetString("log.file")

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")
	conf.Server.RateLimit = v.GetFloat64("server.rateLimit")
	conf.Server.RateBurst = v.GetInt("server.rateBurst")

	conf.Classroom.InviteCodeTTL = v.GetDuration("classroom.inviteCodeTTL")
	conf.Classroom.DefaultDueDelta = v.GetDuration("classroom.defaultDueDelta")
	conf.Classroom.CodeMaxAttempts = v.GetInt("classroom.codeMaxAttempts")

	conf.Bolt.Path = v.GetString("bolt.path")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetInt("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	return conf
}

// NewTestConfig returns a Config suitable for tests: memory storage, no rate limiting.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Storage = StorageMemory
	conf.Server.RateLimit = 0
	return conf
}
