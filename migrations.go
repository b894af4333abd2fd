package main

import "embed"

//go:embed migrations/postgres/*.sql
var migrationsFS embed.FS
