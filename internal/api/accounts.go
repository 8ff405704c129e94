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

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/auth"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/security"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

// RegisterRequest is the body of POST /api/register
type RegisterRequest struct {
	UID       string `json:"uid"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	DOB       string `json:"dob"`
	Gender    string `json:"gender"`
	PhotoURL  string `json:"photoURL"`
}

// LoginRequest is the body of POST /api/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountUser is the public view of a user returned by register and login
type AccountUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PhotoURL     string `json:"photoURL"`
	IsGoogleUser bool   `json:"isGoogleUser"`
}

func newAccountUser(u *storage.User) AccountUser {
	return AccountUser{
		ID:           u.UID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PhotoURL:     u.PhotoURL,
		IsGoogleUser: u.IsGoogleUser,
	}
}

// AuthHandler handles registration and login
type AuthHandler struct {
	users  *storage.UsersStore
	issuer *auth.TokenIssuer
}

// NewAuthHandler creates a new auth handler. Without an issuer, login
// answers 503.
func NewAuthHandler(users *storage.UsersStore, issuer *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer}
}

// HandleRegister handles POST /api/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req RegisterRequest
	if err := readJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	isGoogleUser := req.UID != "" && req.Password == ""
	if missing := missingRegisterFields(req, isGoogleUser); len(missing) > 0 {
		writeDetail(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	user := &storage.User{
		UID:          req.UID,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DOB:          req.DOB,
		Gender:       req.Gender,
		PhotoURL:     req.PhotoURL,
		IsGoogleUser: isGoogleUser,
	}

	if !isGoogleUser {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			logging.LogError(err, "Failed to hash password")
			writeDetail(w, http.StatusInternalServerError, "Server error during registration")
			return
		}
		user.UID = uuid.NewString()
		user.PasswordHash = hash
	}

	if err := h.users.Create(user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			writeDetail(w, http.StatusBadRequest, "User already exists. Please log in.")
			return
		}
		logging.LogError(err, "Failed to register user",
			zap.String("email", security.SanitizeLogInput(req.Email)),
		)
		writeDetail(w, http.StatusInternalServerError, "Server error during registration")
		return
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("👤 User registered", "uid", user.UID, "google", isGoogleUser)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Registration successful",
		"user":    newAccountUser(user),
	})
}

func missingRegisterFields(req RegisterRequest, isGoogleUser bool) []string {
	fields := []struct {
		name  string
		value string
	}{
		{"firstName", req.FirstName},
		{"lastName", req.LastName},
		{"email", req.Email},
		{"password", req.Password},
		{"dob", req.DOB},
		{"gender", req.Gender},
	}
	if isGoogleUser {
		fields = []struct {
			name  string
			value string
		}{
			{"email", req.Email},
			{"uid", req.UID},
			{"firstName", req.FirstName},
		}
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// HandleLogin handles POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.issuer == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Login is not configured")
		return
	}

	var req LoginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, err := h.users.GetByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.LogError(err, "Failed to load user for login")
			writeDetail(w, http.StatusInternalServerError, "Server error during login")
			return
		}
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.issuer.Issue(user.UID, user.Email)
	if err != nil {
		logging.LogError(err, "Failed to issue token", zap.String("uid", user.UID))
		writeDetail(w, http.StatusInternalServerError, "Server error during login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user":    newAccountUser(user),
	})
}

// UsersHandler serves the authenticated user's profile
type UsersHandler struct {
	users *storage.UsersStore
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(users *storage.UsersStore) *UsersHandler {
	return &UsersHandler{users: users}
}

// HandleGetUser handles GET /api/get-user
func (h *UsersHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	name := user.DisplayName()
	if name == "" {
		name, _, _ = strings.Cut(user.Email, "@")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uid":          user.UID,
		"email":        user.Email,
		"name":         name,
		"photoURL":     user.PhotoURL,
		"isGoogleUser": user.IsGoogleUser,
	})
}

// HandleUser handles GET /api/user
func (h *UsersHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         user.FirstName,
		"fullName":     user.DisplayName(),
		"dob":          user.DOB,
		"age":          user.Age,
		"gender":       user.Gender,
		"email":        user.Email,
		"isGoogleUser": user.IsGoogleUser,
		"photoURL":     user.PhotoURL,
	})
}

// HandleUpdateMe handles PUT /api/user/me. Fields left empty keep their
// current value.
func (h *UsersHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if user.IsGoogleUser {
		writeDetail(w, http.StatusForbidden,
			"Google user profile is managed by the identity provider and cannot be updated manually.")
		return
	}

	var body map[string]interface{}
	if err := readJSON(w, r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	updated := *user
	if fullName := stringField(body, "fullName"); fullName != "" {
		lastName := fullName
		if user.FirstName != "" {
			lastName = strings.ReplaceAll(fullName, user.FirstName, "")
		}
		if lastName = strings.TrimSpace(lastName); lastName != "" {
			updated.LastName = lastName
		}
	}
	updated.FirstName = firstNonEmpty(stringField(body, "name"), user.FirstName)
	updated.DOB = firstNonEmpty(stringField(body, "dob"), user.DOB)
	updated.Age = firstNonEmpty(stringField(body, "age"), user.Age)
	updated.Gender = firstNonEmpty(stringField(body, "gender"), user.Gender)
	updated.PhotoURL = firstNonEmpty(stringField(body, "photoURL"), user.PhotoURL)

	if err := h.users.UpdateProfile(&updated); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		logging.LogError(err, "Failed to update profile", zap.String("uid", user.UID))
		writeDetail(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Profile updated successfully",
		"user": map[string]string{
			"firstName": updated.FirstName,
			"lastName":  updated.LastName,
			"dob":       updated.DOB,
			"age":       updated.Age,
			"gender":    updated.Gender,
			"photoURL":  updated.PhotoURL,
		},
	})
}

// stringField reads a JSON scalar as a string; numbers such as an age are
// accepted too
func stringField(body map[string]interface{}, key string) string {
	switch v := body[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
