package learning

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"tutorgo/internal/storage"
)

// Service is the data-access layer for profiles and learning records.
type Service struct {
	db      *sql.DB
	dialect storage.Dialect
}

// NewService builds a learning store over db.
func NewService(db *sql.DB, dialect storage.Dialect) *Service {
	return &Service{db: db, dialect: dialect}
}

func (s *Service) q(query string) string {
	return storage.Rebind(s.dialect, query)
}

// DB exposes the handle for callers sharing the connection (auth).
func (s *Service) DB() *sql.DB {
	return s.db
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode column: %w", err)
	}
	return string(raw), nil
}

func decodeJSON[T any](raw string) ([]T, error) {
	if raw == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode column: %w", err)
	}
	return out, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
