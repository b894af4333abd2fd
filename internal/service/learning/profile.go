package learning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tutorgo/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// RegisterProfile creates a profile with the supplied credentials.
func (s *Service) RegisterProfile(ctx context.Context, username, password, fullName string, role models.Capability) (*models.Profile, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if role == "" {
		role = models.CapabilityStudent
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	profile := &models.Profile{
		ID:           uuid.NewString(),
		Username:     username,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		s.q(`INSERT INTO profiles (id, username, full_name, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		profile.ID, profile.Username, profile.FullName, string(profile.Role), profile.PasswordHash, profile.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return profile, nil
}

// Login validates credentials and returns the profile.
func (s *Service) Login(ctx context.Context, username, password string) (*models.Profile, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	profile, err := s.scanProfile(s.db.QueryRowContext(ctx,
		s.q(`SELECT id, username, full_name, role, password_hash, created_at FROM profiles WHERE username = ?`), username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return profile, nil
}

// GetProfile loads a profile by id. Missing profiles return sql.ErrNoRows.
func (s *Service) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, errors.New("invalid profile id")
	}
	return s.scanProfile(s.db.QueryRowContext(ctx,
		s.q(`SELECT id, username, full_name, role, password_hash, created_at FROM profiles WHERE id = ?`), id,
	))
}

func (s *Service) scanProfile(row *sql.Row) (*models.Profile, error) {
	var p models.Profile
	var role string
	if err := row.Scan(&p.ID, &p.Username, &p.FullName, &role, &p.PasswordHash, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	p.Role = models.Capability(role)
	return &p, nil
}

// DeleteProfile removes a profile and cascaded data.
func (s *Service) DeleteProfile(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid profile id")
	}
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM profiles WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
