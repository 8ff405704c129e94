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

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sahilpatil2001/mme-fastapi/internal/config"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

const responseJSON = `{
	"id": "resp_1",
	"object": "response",
	"created_at": 1700000000,
	"status": "completed",
	"model": "gpt-4o-mini",
	"output": [{
		"type": "message",
		"id": "msg_1",
		"role": "assistant",
		"status": "completed",
		"content": [{"type": "output_text", "text": "  Breathe in slowly.  ", "annotations": []}]
	}]
}`

func newTestWriter(t *testing.T, handler http.HandlerFunc) *ScriptWriter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	writer, err := NewScriptWriter(config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: server.URL + "/",
		Model:   "gpt-4o-mini",
	})
	require.NoError(t, err)
	return writer
}

func TestNewScriptWriter_RequiresModel(t *testing.T) {
	_, err := NewScriptWriter(config.OpenAIConfig{APIKey: "sk"})
	assert.Error(t, err)
}

func TestWriteScript(t *testing.T) {
	var body map[string]interface{}

	writer := newTestWriter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/responses"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, responseJSON)
	})

	script, err := writer.WriteScript(context.Background(), "Write a calm intro")
	require.NoError(t, err)
	assert.Equal(t, "Breathe in slowly.", script)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, "Write a calm intro", body["input"])
	assert.Equal(t, narrationInstructions, body["instructions"])
}

func TestWriteScript_UpstreamError(t *testing.T) {
	writer := newTestWriter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	_, err := writer.WriteScript(context.Background(), "hello")
	assert.Error(t, err)
}

func TestWriteScript_EmptyPrompt(t *testing.T) {
	writer := newTestWriter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected")
	})

	_, err := writer.WriteScript(context.Background(), "   ")
	assert.Error(t, err)
}

func TestBuildNarrationPrompt(t *testing.T) {
	settings := &storage.Settings{
		ElevenLabsSettings: storage.ElevenLabsSettings{
			ModelID:   "eleven_turbo_v2",
			Stability: 0.5,
			VoiceTags: "warm",
		},
		GPTScriptStageOne: "Open gently.",
		DemoAudioScript:   "Welcome.",
	}

	prompt := BuildNarrationPrompt("  I need to relax  ", settings)

	assert.Contains(t, prompt, "User message:\nI need to relax\n")
	assert.Contains(t, prompt, "- Model ID: eleven_turbo_v2")
	assert.Contains(t, prompt, "- Stability: 0.5")
	assert.Contains(t, prompt, "- Voice tags: warm")
	assert.Contains(t, prompt, "Stage 1: Open gently.")
	assert.Contains(t, prompt, "Demo audio script: Welcome.")
	assert.True(t, strings.HasSuffix(prompt, "ready for text-to-speech."))

	bare := BuildNarrationPrompt("hi", nil)
	assert.NotContains(t, bare, "Current voice settings")
}
