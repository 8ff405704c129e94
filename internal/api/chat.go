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
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Sahilpatil2001/mme-fastapi/internal/elevenlabs"
	"github.com/Sahilpatil2001/mme-fastapi/internal/llm"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/merge"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

// Chat defaults applied when the admin settings leave them empty
const (
	DefaultChatVoiceID = "EXAVITQu4vr4xnSDxMaL"
	DefaultChatModelID = "eleven_turbo_v2"
)

// ScriptWriter turns a prompt into a narration script
type ScriptWriter interface {
	WriteScript(ctx context.Context, prompt string) (string, error)
}

// ChatHandler writes a script from a user message and voices it
type ChatHandler struct {
	writer   ScriptWriter
	settings *storage.SettingsStore
	synth    merge.Synthesizer
	audioDir string
}

// NewChatHandler creates a new chat handler writing audio to audioDir. A nil
// writer makes the route answer 503.
func NewChatHandler(writer ScriptWriter, settings *storage.SettingsStore, synth merge.Synthesizer, audioDir string) *ChatHandler {
	return &ChatHandler{
		writer:   writer,
		settings: settings,
		synth:    synth,
		audioDir: audioDir,
	}
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is returned by POST /api/chat
type ChatResponse struct {
	Success   bool   `json:"success"`
	GPTScript string `json:"gpt_script"`
	AudioFile string `json:"audio_file"`
	Message   string `json:"message"`
}

// HandleChat handles POST /api/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.writer == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Chat is not configured")
		return
	}

	var req ChatRequest
	if err := readJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeDetail(w, http.StatusBadRequest, "Message is required")
		return
	}

	settings, err := h.settings.Get()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Admin settings not found")
			return
		}
		logging.LogError(err, "Failed to load settings for chat")
		writeDetail(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	script, err := h.writer.WriteScript(r.Context(), llm.BuildNarrationPrompt(req.Message, settings))
	if err != nil {
		logging.LogError(err, "Script generation failed")
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("GPT or TTS generation failed: %v", err))
		return
	}

	fileName := fmt.Sprintf("chat_%s.mp3", uuid.NewString())
	el := settings.ElevenLabsSettings
	_, err = h.synth.Synthesize(r.Context(), elevenlabs.SynthesisRequest{
		Text:    script,
		VoiceID: firstNonEmpty(el.VoiceID, DefaultChatVoiceID),
		ModelID: firstNonEmpty(el.ModelID, DefaultChatModelID),
		VoiceSettings: &elevenlabs.VoiceSettings{
			Stability:       el.Stability,
			SimilarityBoost: similarityBoost(el),
		},
	}, filepath.Join(h.audioDir, fileName))
	if err != nil {
		logging.LogError(err, "Chat synthesis failed")
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("GPT or TTS generation failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Success:   true,
		GPTScript: script,
		AudioFile: fileName,
		Message:   "Script and audio generated successfully",
	})
}

// similarityBoost falls back to the style value when no boost is configured
func similarityBoost(el storage.ElevenLabsSettings) float64 {
	if el.SimilarityBoost != nil {
		return *el.SimilarityBoost
	}
	return el.Style
}
