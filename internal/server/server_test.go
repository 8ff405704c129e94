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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Sahilpatil2001/mme-fastapi/internal/audio"
	"github.com/Sahilpatil2001/mme-fastapi/internal/audio/audiotest"
	"github.com/Sahilpatil2001/mme-fastapi/internal/config"
	"github.com/Sahilpatil2001/mme-fastapi/internal/elevenlabs"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/merge"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

type stubSynth struct {
	mu sync.Mutex
	n  int
}

func (s *stubSynth) Synthesize(ctx context.Context, req elevenlabs.SynthesisRequest, outPath string) (*elevenlabs.SynthesisResult, error) {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(outPath), 0750); err != nil {
		return nil, err
	}
	if err := os.WriteFile(outPath, []byte(req.Text), 0600); err != nil {
		return nil, err
	}
	return &elevenlabs.SynthesisResult{
		CorrelationID: fmt.Sprintf("el-%d", n),
		FilePath:      outPath,
		Bytes:         int64(len(req.Text)),
	}, nil
}

type stubVoices struct{}

func (stubVoices) ListVoices(ctx context.Context) ([]json.RawMessage, error) {
	return []json.RawMessage{json.RawMessage(`{"voice_id":"v1"}`)}, nil
}

func testConfig(t *testing.T, authEnabled bool) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Audio: config.AudioConfig{
			Dir:           filepath.Join(t.TempDir(), "audios"),
			SilenceDir:    filepath.Join(t.TempDir(), "silence"),
			FFmpegPath:    "ffmpeg",
			FFmpegTimeout: time.Minute,
		},
		Auth: config.AuthConfig{
			Enabled:   authEnabled,
			JWTSecret: "server-test-secret",
			TokenTTL:  time.Hour,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
	}
}

func newTestServer(t *testing.T, authEnabled bool) *httptest.Server {
	t.Helper()

	if err := logging.Initialize(); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	cfg := testConfig(t, authEnabled)

	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: filepath.Join(t.TempDir(), "server.db")})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	synth := &stubSynth{}
	runner := &audiotest.FakeRunner{}
	pipeline := merge.NewPipeline(synth,
		audio.NewSilenceCache(cfg.Audio.SilenceDir, runner),
		audio.NewAssembler(runner),
		cfg.Audio.Dir,
	)

	srv, err := New(cfg, Dependencies{
		Database:    db,
		Merger:      pipeline,
		Synthesizer: synth,
		Voices:      stubVoices{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(testConfig(t, false), Dependencies{}); err == nil {
		t.Error("Expected error for missing dependencies")
	}
}

func TestNew_AuthWithoutSecret(t *testing.T) {
	cfg := testConfig(t, true)
	cfg.Auth.JWTSecret = ""

	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	_, err = New(cfg, Dependencies{
		Database:    db,
		Merger:      &merge.Pipeline{},
		Synthesizer: &stubSynth{},
		Voices:      stubVoices{},
	})
	if err == nil {
		t.Error("Expected error when auth is enabled without a secret")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, true)

	resp := do(t, http.MethodGet, ts.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	body := decode(t, resp)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["database"] != "ok" {
		t.Errorf("database = %v, want ok", body["database"])
	}
	if body["nats"] != "disabled" {
		t.Errorf("nats = %v, want disabled", body["nats"])
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, true)

	for _, path := range []string{"/api/user", "/api/get-user", "/api/voices", "/api/merge-jobs"} {
		resp := do(t, http.MethodGet, ts.URL+path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: Status = %d, want 401", path, resp.StatusCode)
		}
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/user", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", resp.StatusCode)
	}
	if body := decode(t, resp); body["detail"] != "Invalid or expired token" {
		t.Errorf("detail = %v", body["detail"])
	}
}

func TestAccountFlowAndMerge(t *testing.T) {
	ts := newTestServer(t, true)

	resp := do(t, http.MethodPost, ts.URL+"/api/register", "", map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"password":  "secret-pass",
		"dob":       "1815-12-10",
		"gender":    "female",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: Status = %d, want 201", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "secret-pass",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: Status = %d, want 200", resp.StatusCode)
	}
	token, _ := decode(t, resp)["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/user", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user: Status = %d, want 200", resp.StatusCode)
	}
	if body := decode(t, resp); body["fullName"] != "Ada Lovelace" {
		t.Errorf("fullName = %v", body["fullName"])
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/merge-audio", token, map[string]interface{}{
		"sentences": []string{"Hello there", "(1s-pause)", "Goodbye"},
		"voiceId":   "voice_1",
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("merge: Status = %d, body = %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
	if ids := resp.Header.Get("request-id"); ids != "el-2,el-1" {
		t.Errorf("request-id = %q, want %q", ids, "el-2,el-1")
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "Hello theresilence:1\nGoodbye" {
		t.Errorf("merged data = %q", data)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/merge-jobs", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("merge-jobs: Status = %d, want 200", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["total"] != float64(1) {
		t.Errorf("total = %v, want 1", body["total"])
	}
}

func TestMergeAudioAliasWithoutAuth(t *testing.T) {
	ts := newTestServer(t, false)

	resp := do(t, http.MethodPost, ts.URL+"/merge-audio", "", map[string]interface{}{
		"sentences": []string{"(2s-pause)"},
		"voiceId":   "voice_1",
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Status = %d, body = %s", resp.StatusCode, body)
	}

	resp = do(t, http.MethodPost, ts.URL+"/merge-audio", "", map[string]interface{}{
		"sentences": []string{},
		"voiceId":   "voice_1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}

	// Without a session there is no user to attach
	resp = do(t, http.MethodGet, ts.URL+"/api/user", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", resp.StatusCode)
	}
}

func TestChatWithoutWriter(t *testing.T) {
	ts := newTestServer(t, false)

	resp := do(t, http.MethodPost, ts.URL+"/api/chat", "", map[string]string{"message": "hi"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, true)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/merge-audio", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		t.Errorf("Status = %d, want 2xx", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q", got)
	}
}

func TestCORSExposesRequestID(t *testing.T) {
	ts := newTestServer(t, true)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if got := resp.Header.Get("Access-Control-Expose-Headers"); got == "" {
		t.Error("Access-Control-Expose-Headers should be set")
	}
}
