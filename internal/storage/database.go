package storage

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	"tutorgo/internal/config"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL flavour behind a *sql.DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// ParseDialect normalizes a configured database type.
func ParseDialect(dbType string) (Dialect, error) {
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", dbType)
	}
}

// Open connects to the configured database.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}
	dialect, err := ParseDialect(dbType)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch dialect {
	case SQLite:
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// a second connection to ":memory:" would see a different, empty database
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case MySQL:
		dsn, err := MySQLDSN(dbCfg)
		if err != nil {
			return nil, err
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case Postgres:
		db, err = sql.Open("pgx", PostgresURL(dbCfg))
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// MySQLDSN returns the configured DSN, or one built from parts, with
// parseTime forced on so DATETIME columns scan into time.Time.
func MySQLDSN(dbCfg config.DatabaseConfig) (string, error) {
	dsn := dbCfg.DSN
	if dsn == "" {
		port := dbCfg.Port
		if port == 0 {
			port = 3306
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", dbCfg.Username, dbCfg.Password, dbCfg.Host, port, dbCfg.DBName)
		if dbCfg.Params != "" {
			dsn += "?" + dbCfg.Params
		}
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// PostgresURL returns the DSN, building a postgres:// URL when only parts are set.
func PostgresURL(dbCfg config.DatabaseConfig) string {
	if dbCfg.DSN != "" {
		return dbCfg.DSN
	}
	port := dbCfg.Port
	if port == 0 {
		port = 5432
	}
	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", dbCfg.Username, dbCfg.Password, dbCfg.Host, port, dbCfg.DBName)
	if dbCfg.Params != "" {
		url += "?" + dbCfg.Params
	}
	return url
}

// Rebind rewrites ? placeholders into the dialect's positional form.
func Rebind(dialect Dialect, query string) string {
	if dialect != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(databaseURL string, migrationsFS fs.FS) error {
	d, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

// Migrate ensures the required tables are present for sqlite and mysql.
// Postgres schemas are managed by RunMigrations.
func Migrate(db *sql.DB, driver string) error {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}
	var stmts []string
	switch dialect {
	case SQLite:
		stmts = sqliteSchema
	case MySQL:
		stmts = mysqlSchema
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_tokens (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_tokens_user ON user_tokens(user_id)`,
	`CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS student_tracks (
		student_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		joined_at DATETIME NOT NULL,
		PRIMARY KEY (student_id, track_id),
		FOREIGN KEY(student_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY(track_id) REFERENCES tracks(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		track_id TEXT NOT NULL,
		name TEXT NOT NULL,
		FOREIGN KEY(track_id) REFERENCES tracks(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS student_skills (
		student_id TEXT NOT NULL,
		skill_id TEXT NOT NULL,
		practice_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (student_id, skill_id),
		FOREIGN KEY(student_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY(skill_id) REFERENCES skills(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS homework (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		track_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'assigned',
		grade REAL NOT NULL DEFAULT 0,
		due_at DATETIME,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(student_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_homework_student ON homework(student_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		track_id TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		total_questions INTEGER NOT NULL DEFAULT 0,
		questions TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(student_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quizzes_student ON quizzes(student_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		track_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(student_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_student ON lessons(student_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS chat_logs (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		track_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		response TEXT NOT NULL,
		skills_addressed TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(student_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_logs_student ON chat_logs(student_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS flashcard_sets (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		track_id TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL,
		cards TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(student_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		tutor_id TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL,
		scheduled_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		FOREIGN KEY(student_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_student ON appointments(student_id, scheduled_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id CHAR(36) NOT NULL,
		username VARCHAR(255) NOT NULL UNIQUE,
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(32) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_tokens (
		token VARCHAR(255) NOT NULL PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		INDEX idx_user_tokens_user (user_id),
		CONSTRAINT fk_user_tokens_user FOREIGN KEY (user_id) REFERENCES profiles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tracks (
		id CHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		subject VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS student_tracks (
		student_id CHAR(36) NOT NULL,
		track_id CHAR(36) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		joined_at DATETIME NOT NULL,
		PRIMARY KEY (student_id, track_id),
		CONSTRAINT fk_student_tracks_student FOREIGN KEY (student_id) REFERENCES profiles(id) ON DELETE CASCADE,
		CONSTRAINT fk_student_tracks_track FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS skills (
		id CHAR(36) NOT NULL,
		track_id CHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		PRIMARY KEY (id),
		CONSTRAINT fk_skills_track FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS student_skills (
		student_id CHAR(36) NOT NULL,
		skill_id CHAR(36) NOT NULL,
		practice_count INT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (student_id, skill_id),
		CONSTRAINT fk_student_skills_student FOREIGN KEY (student_id) REFERENCES profiles(id) ON DELETE CASCADE,
		CONSTRAINT fk_student_skills_skill FOREIGN KEY (skill_id) REFERENCES skills(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS homework (
		id CHAR(36) NOT NULL,
		student_id CHAR(36) NOT NULL,
		track_id VARCHAR(36) NOT NULL DEFAULT '',
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		difficulty VARCHAR(32) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'assigned',
		grade DECIMAL(5,2) NOT NULL DEFAULT 0,
		due_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id),
		INDEX idx_homework_student (student_id, created_at),
		CONSTRAINT fk_homework_student FOREIGN KEY (student_id) REFERENCES profiles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		id CHAR(36) NOT NULL,
		student_id CHAR(36) NOT NULL,
		track_id VARCHAR(36) NOT NULL DEFAULT '',
		topic VARCHAR(255) NOT NULL,
		score DECIMAL(5,2) NOT NULL DEFAULT 0,
		total_questions INT NOT NULL DEFAULT 0,
		questions MEDIUMTEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id),
		INDEX idx_quizzes_student (student_id, created_at),
		CONSTRAINT fk_quizzes_student FOREIGN KEY (student_id) REFERENCES profiles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS lessons (
		id CHAR(36) NOT NULL,
		student_id CHAR(36) NOT NULL,
		track_id VARCHAR(36) NOT NULL DEFAULT '',
		title VARCHAR(255) NOT NULL,
		summary TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id),
		INDEX idx_lessons_student (student_id, created_at),
		CONSTRAINT fk_lessons_student FOREIGN KEY (student_id) REFERENCES profiles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS chat_logs (
		id CHAR(36) NOT NULL,
		student_id CHAR(36) NOT NULL,
		track_id VARCHAR(36) NOT NULL DEFAULT '',
		message MEDIUMTEXT NOT NULL,
		response MEDIUMTEXT NOT NULL,
		skills_addressed TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id),
		INDEX idx_chat_logs_student (student_id, created_at),
		CONSTRAINT fk_chat_logs_student FOREIGN KEY (student_id) REFERENCES profiles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS flashcard_sets (
		id CHAR(36) NOT NULL,
		student_id CHAR(36) NOT NULL,
		track_id VARCHAR(36) NOT NULL DEFAULT '',
		topic VARCHAR(255) NOT NULL,
		cards MEDIUMTEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id),
		CONSTRAINT fk_flashcard_sets_student FOREIGN KEY (student_id) REFERENCES profiles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id CHAR(36) NOT NULL,
		student_id CHAR(36) NOT NULL,
		tutor_id VARCHAR(36) NOT NULL DEFAULT '',
		subject VARCHAR(255) NOT NULL,
		scheduled_at DATETIME NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'scheduled',
		PRIMARY KEY (id),
		INDEX idx_appointments_student (student_id, scheduled_at),
		CONSTRAINT fk_appointments_student FOREIGN KEY (student_id) REFERENCES profiles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
