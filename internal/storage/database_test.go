package storage

import (
	"strings"
	"testing"

	"tutorgo/internal/config"
)

func TestRebind(t *testing.T) {
	cases := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{SQLite, `SELECT * FROM homework WHERE student_id = ? LIMIT ?`, `SELECT * FROM homework WHERE student_id = ? LIMIT ?`},
		{Postgres, `SELECT * FROM homework WHERE student_id = ? LIMIT ?`, `SELECT * FROM homework WHERE student_id = $1 LIMIT $2`},
		{Postgres, `UPDATE quizzes SET topic = '?' WHERE id = ?`, `UPDATE quizzes SET topic = '?' WHERE id = $1`},
		{MySQL, `DELETE FROM chat_logs WHERE id = ?`, `DELETE FROM chat_logs WHERE id = ?`},
	}
	for _, tc := range cases {
		if got := Rebind(tc.dialect, tc.in); got != tc.want {
			t.Fatalf("Rebind(%s, %q) = %q, want %q", tc.dialect, tc.in, got, tc.want)
		}
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"sqlite": SQLite, "SQLITE3": SQLite, "mysql": MySQL, "postgresql": Postgres} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{"sqlite3": {DSN: ":memory:"}},
	}
	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// idempotent
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	for _, table := range []string{"profiles", "homework", "quizzes", "lessons", "chat_logs", "student_tracks", "skills", "student_skills", "appointments"} {
		var name string
		if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestPostgresURL(t *testing.T) {
	got := PostgresURL(config.DatabaseConfig{Host: "db", Username: "u", Password: "p", DBName: "tutor", Params: "sslmode=disable"})
	if got != "postgres://u:p@db:5432/tutor?sslmode=disable" {
		t.Fatalf("unexpected url %q", got)
	}
	if PostgresURL(config.DatabaseConfig{DSN: "postgres://x"}) != "postgres://x" {
		t.Fatalf("dsn should win")
	}
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	dsn, err := MySQLDSN(config.DatabaseConfig{Host: "db", Username: "u", Password: "p", DBName: "tutor", Params: "charset=utf8mb4"})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}
	if !strings.Contains(dsn, "parseTime=true") || !strings.Contains(dsn, "tcp(db:3306)/tutor") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	dsn, err = MySQLDSN(config.DatabaseConfig{DSN: "u:p@tcp(db:3307)/tutor"})
	if err != nil || !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("dsn %q, err %v", dsn, err)
	}
	if _, err := MySQLDSN(config.DatabaseConfig{DSN: "not a dsn"}); err == nil {
		t.Fatalf("expected error for malformed dsn")
	}
}
