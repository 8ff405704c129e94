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
	"net/http"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

// VoiceLister lists the voices available upstream
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]json.RawMessage, error)
}

// VoicesHandler proxies the upstream voice catalogue
type VoicesHandler struct {
	voices VoiceLister
}

// NewVoicesHandler creates a new voices handler
func NewVoicesHandler(voices VoiceLister) *VoicesHandler {
	return &VoicesHandler{voices: voices}
}

// HandleVoices handles GET /api/voices
func (h *VoicesHandler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	voices, err := h.voices.ListVoices(r.Context())
	if err != nil {
		logging.LogError(err, "Failed to fetch voices")
		writeDetail(w, http.StatusInternalServerError, "Failed to fetch voices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"voices": voices})
}
