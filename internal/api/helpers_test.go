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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sahilpatil2001/mme-fastapi/internal/auth"
	"github.com/Sahilpatil2001/mme-fastapi/internal/config"
	"github.com/Sahilpatil2001/mme-fastapi/internal/events"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

func newTestDatabase(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
	require.NoError(t, err)
	return issuer
}

// jsonRequest builds a request with a JSON body and, when user is set, an
// authenticated context
func jsonRequest(t *testing.T, method, target string, body interface{}, user *storage.User) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(auth.WithUser(req.Context(), user))
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

type fakeRecorder struct {
	mu   sync.Mutex
	jobs []*events.MergeJob
}

func (f *fakeRecorder) Record(job *events.MergeJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}

type fakePublisher struct {
	published []*events.MergeJob
	err       error
}

func (f *fakePublisher) PublishMergeCompleted(job *events.MergeJob) error {
	f.published = append(f.published, job)
	return f.err
}

type fakeVoices struct {
	voices []json.RawMessage
	err    error
}

func (f *fakeVoices) ListVoices(ctx context.Context) ([]json.RawMessage, error) {
	return f.voices, f.err
}

var errUpstream = errors.New("upstream unavailable")
