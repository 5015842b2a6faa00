// Package migrations holds the Postgres schema for quizzes and identities.
// Each migration file is named {version}_{name}.go; bun derives the
// migration name from the registering file.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
