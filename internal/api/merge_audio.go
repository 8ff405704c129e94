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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/auth"
	"github.com/Sahilpatil2001/mme-fastapi/internal/events"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/merge"
	"github.com/Sahilpatil2001/mme-fastapi/internal/script"
	"github.com/Sahilpatil2001/mme-fastapi/internal/security"
)

const (
	// CorrelationHeader carries upstream request ids back to the client
	CorrelationHeader = "request-id"

	// maxCorrelationIDs is how many ids the response header carries
	maxCorrelationIDs = 3

	msgRequiredFields = "voiceId and sentences are required"
)

// Merger assembles a script into audio
type Merger interface {
	Merge(ctx context.Context, req merge.Request) (*merge.MergedAudio, error)
}

// JobRecorder keeps a record of every merge request
type JobRecorder interface {
	Record(job *events.MergeJob)
}

// MergeAudioRequest is the body of POST /api/merge-audio
type MergeAudioRequest struct {
	Sentences json.RawMessage `json:"sentences"`
	VoiceID   string          `json:"voiceId"`
}

// MergeAudioHandler handles POST /api/merge-audio
type MergeAudioHandler struct {
	merger   Merger
	recorder JobRecorder // Optional
}

// NewMergeAudioHandler creates a new merge handler
func NewMergeAudioHandler(merger Merger, recorder JobRecorder) *MergeAudioHandler {
	return &MergeAudioHandler{merger: merger, recorder: recorder}
}

// HandleMergeAudio validates the request, runs the pipeline and streams the
// merged mp3 back
func (h *MergeAudioHandler) HandleMergeAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req MergeAudioRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var sentences []string
	if len(req.Sentences) == 0 || json.Unmarshal(req.Sentences, &sentences) != nil ||
		len(sentences) == 0 || strings.TrimSpace(req.VoiceID) == "" {
		writeError(w, http.StatusBadRequest, msgRequiredFields)
		return
	}

	if err := security.ValidateVoiceID(req.VoiceID); err != nil {
		logging.LogWarn("Rejected voice id",
			zap.String("voice_id", security.SanitizeLogInput(req.VoiceID)),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var userID string
	if user, ok := auth.UserFromContext(r.Context()); ok {
		userID = user.UID
	}

	job := events.NewMergeJob(userID, req.VoiceID, len(sentences))

	result, err := h.merger.Merge(r.Context(), merge.Request{
		Sentences: sentences,
		VoiceID:   req.VoiceID,
	})
	if err != nil {
		job.SetError(err)
		h.record(job)
		writeMergeError(w, err)
		return
	}

	job.SetScript(len(result.Segments), script.TotalSilence(result.Segments))
	job.SetOutput(result.FileName, int64(len(result.Data)), result.CorrelationIDs)
	h.record(job)

	logging.LogMergeJob(job, "Merged audio delivered",
		zap.String("output", result.FileName),
		zap.Int("bytes", len(result.Data)),
		zap.Int64("processing_time_ms", job.ProcessingTime),
	)

	header := w.Header()
	header.Set("Content-Type", "audio/mpeg")
	header.Set("Content-Length", strconv.Itoa(len(result.Data)))
	header.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.FileName))
	if ids := result.RecentCorrelationIDs(maxCorrelationIDs); len(ids) > 0 {
		header.Set(CorrelationHeader, strings.Join(ids, ","))
	}
	header.Set("Access-Control-Expose-Headers", CorrelationHeader)

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		logging.LogWarn("Failed to write merged audio", zap.Error(err))
	}
}

func (h *MergeAudioHandler) record(job *events.MergeJob) {
	if h.recorder != nil {
		h.recorder.Record(job)
	}
}

// writeMergeError maps pipeline errors onto HTTP statuses
func writeMergeError(w http.ResponseWriter, err error) {
	var parseErr *script.ParseError
	switch {
	case errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, parseErr.Error())
	case errors.Is(err, merge.ErrNoSegments):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.LogError(err, "Merge audio failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
