/*
 * This file is part of MME (https://github.com/Sahilpatil2001/mme-fastapi).
 * Copyright (C) 2025 Sahil Patil
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

// ErrUserExists is returned when registering an email that is already taken
var ErrUserExists = errors.New("user already exists")

// User is a registered account
type User struct {
	UID          string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string // Empty for Google users
	DOB          string
	Age          string
	Gender       string
	PhotoURL     string
	IsGoogleUser bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName returns "First Last" without surrounding spaces
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

const userColumns = `uid, email, first_name, last_name, password_hash,
	dob, age, gender, photo_url, is_google_user, created_at, updated_at`

// UsersStore handles database operations for users
type UsersStore struct {
	db *Database
}

// NewUsersStore creates a new users store
func NewUsersStore(db *Database) *UsersStore {
	return &UsersStore{db: db}
}

// Create inserts a new user. Emails are unique.
func (s *UsersStore) Create(user *User) error {
	if user.UID == "" || user.Email == "" {
		return fmt.Errorf("uid and email are required")
	}

	if _, err := s.GetByEmail(user.Email); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.db.DB().Exec(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.UID, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.DOB, user.Age, user.Gender, user.PhotoURL, user.IsGoogleUser,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	logging.LogDatabaseOperation("insert", "users",
		zap.String("uid", user.UID),
		zap.Bool("google", user.IsGoogleUser),
	)
	return nil
}

// GetByUID retrieves a user by uid
func (s *UsersStore) GetByUID(uid string) (*User, error) {
	row := s.db.DB().QueryRow(`SELECT `+userColumns+` FROM users WHERE uid = ?`, uid)
	return scanUser(row)
}

// GetByEmail retrieves a user by email
func (s *UsersStore) GetByEmail(email string) (*User, error) {
	row := s.db.DB().QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// UpdateProfile overwrites the editable profile fields of an existing user
func (s *UsersStore) UpdateProfile(user *User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := s.db.DB().Exec(`
		UPDATE users
		SET first_name = ?, last_name = ?, dob = ?, age = ?, gender = ?, photo_url = ?, updated_at = ?
		WHERE uid = ?`,
		user.FirstName, user.LastName, user.DOB, user.Age, user.Gender, user.PhotoURL, user.UpdatedAt,
		user.UID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %s: %w", user.UID, ErrNotFound)
	}

	logging.LogDatabaseOperation("update", "users", zap.String("uid", user.UID))
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.UID, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash,
		&user.DOB, &user.Age, &user.Gender, &user.PhotoURL, &user.IsGoogleUser,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
