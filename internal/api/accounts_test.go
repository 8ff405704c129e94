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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sahilpatil2001/mme-fastapi/internal/auth"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

func newAuthFixture(t *testing.T) (*AuthHandler, *storage.UsersStore, *auth.TokenIssuer) {
	t.Helper()
	users := storage.NewUsersStore(newTestDatabase(t))
	issuer := newTestIssuer(t)
	return NewAuthHandler(users, issuer), users, issuer
}

func localRegistration() map[string]interface{} {
	return map[string]interface{}{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "Ada@Example.com",
		"password":  "secret-pass",
		"dob":       "1815-12-10",
		"gender":    "female",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	handler, users, issuer := newAuthFixture(t)

	rec := httptest.NewRecorder()
	handler.HandleRegister(rec, jsonRequest(t, http.MethodPost, "/api/register", localRegistration(), nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Registration successful", body["message"])
	registered := body["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", registered["email"])
	assert.Equal(t, false, registered["isGoogleUser"])
	assert.NotEmpty(t, registered["id"])

	stored, err := users.GetByEmail("ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret-pass", stored.PasswordHash)

	rec = httptest.NewRecorder()
	handler.HandleLogin(rec, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{
		"email":    "ada@example.com",
		"password": "secret-pass",
	}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body = decodeBody(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, stored.UID, claims.ID)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestRegister_GoogleUser(t *testing.T) {
	handler, users, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	handler.HandleRegister(rec, jsonRequest(t, http.MethodPost, "/api/register", map[string]string{
		"uid":       "google-uid-1",
		"email":     "g@example.com",
		"firstName": "Grace",
		"photoURL":  "https://example.com/g.png",
	}, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := users.GetByUID("google-uid-1")
	require.NoError(t, err)
	assert.True(t, stored.IsGoogleUser)
	assert.Empty(t, stored.PasswordHash)

	// Google accounts cannot log in with a password
	rec = httptest.NewRecorder()
	handler.HandleLogin(rec, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{
		"email":    "g@example.com",
		"password": "",
	}, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]interface{}
		wantMsg string
	}{
		{
			name:    "local user missing fields",
			body:    map[string]interface{}{"email": "x@example.com", "password": "pw"},
			wantMsg: "Missing required fields: firstName, lastName, dob, gender",
		},
		{
			name:    "google user missing first name",
			body:    map[string]interface{}{"uid": "u", "email": "x@example.com"},
			wantMsg: "Missing required fields: firstName",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, _ := newAuthFixture(t)

			rec := httptest.NewRecorder()
			handler.HandleRegister(rec, jsonRequest(t, http.MethodPost, "/api/register", tt.body, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeBody(t, rec)["detail"])
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	handler.HandleRegister(rec, jsonRequest(t, http.MethodPost, "/api/register", localRegistration(), nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.HandleRegister(rec, jsonRequest(t, http.MethodPost, "/api/register", localRegistration(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists. Please log in.", decodeBody(t, rec)["detail"])
}

func TestLogin_Rejected(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	handler.HandleRegister(rec, jsonRequest(t, http.MethodPost, "/api/register", localRegistration(), nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	for name, creds := range map[string]map[string]string{
		"wrong password": {"email": "ada@example.com", "password": "nope"},
		"unknown email":  {"email": "who@example.com", "password": "secret-pass"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.HandleLogin(rec, jsonRequest(t, http.MethodPost, "/api/login", creds, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Invalid email or password", decodeBody(t, rec)["detail"])
		})
	}
}

func TestUsersHandler_Profile(t *testing.T) {
	users := storage.NewUsersStore(newTestDatabase(t))
	handler := NewUsersHandler(users)

	user := &storage.User{
		UID:       "u-1",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		DOB:       "1815-12-10",
		Gender:    "female",
	}
	require.NoError(t, users.Create(user))

	rec := httptest.NewRecorder()
	handler.HandleGetUser(rec, jsonRequest(t, http.MethodGet, "/api/get-user", nil, user))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Ada Lovelace", body["name"])
	assert.Equal(t, "u-1", body["uid"])

	rec = httptest.NewRecorder()
	handler.HandleUser(rec, jsonRequest(t, http.MethodGet, "/api/user", nil, user))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Ada", body["name"])
	assert.Equal(t, "Ada Lovelace", body["fullName"])
	assert.Equal(t, "female", body["gender"])

	rec = httptest.NewRecorder()
	handler.HandleUpdateMe(rec, jsonRequest(t, http.MethodPut, "/api/user/me", map[string]interface{}{
		"fullName": "Ada King",
		"age":      36,
	}, user))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, "Profile updated successfully", body["message"])
	updated := body["user"].(map[string]interface{})
	assert.Equal(t, "Ada", updated["firstName"])
	assert.Equal(t, "King", updated["lastName"])
	assert.Equal(t, "36", updated["age"])
	assert.Equal(t, "1815-12-10", updated["dob"])

	stored, err := users.GetByUID("u-1")
	require.NoError(t, err)
	assert.Equal(t, "King", stored.LastName)
	assert.Equal(t, "36", stored.Age)
}

func TestUsersHandler_GetUserFallsBackToEmail(t *testing.T) {
	handler := NewUsersHandler(storage.NewUsersStore(newTestDatabase(t)))

	rec := httptest.NewRecorder()
	handler.HandleGetUser(rec, jsonRequest(t, http.MethodGet, "/api/get-user", nil,
		&storage.User{UID: "u", Email: "nameless@example.com"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nameless", decodeBody(t, rec)["name"])
}

func TestUsersHandler_GoogleUserCannotUpdate(t *testing.T) {
	handler := NewUsersHandler(storage.NewUsersStore(newTestDatabase(t)))

	rec := httptest.NewRecorder()
	handler.HandleUpdateMe(rec, jsonRequest(t, http.MethodPut, "/api/user/me", map[string]string{"name": "X"},
		&storage.User{UID: "g", Email: "g@example.com", IsGoogleUser: true}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUsersHandler_RequiresUser(t *testing.T) {
	handler := NewUsersHandler(storage.NewUsersStore(newTestDatabase(t)))

	rec := httptest.NewRecorder()
	handler.HandleUser(rec, jsonRequest(t, http.MethodGet, "/api/user", nil, nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User ID is missing in token", decodeBody(t, rec)["detail"])
}
