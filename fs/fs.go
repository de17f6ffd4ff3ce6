// Package appfs embeds the static files shipped with the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates assets/*
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	CommonPasswords   = "assets/common-passwords.txt"
)
