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
	"net/http"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

// SettingsHandler serves the admin settings singleton
type SettingsHandler struct {
	settings *storage.SettingsStore
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *storage.SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// HandleSettings handles GET and PUT /api/admin/settings
func (h *SettingsHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w)
	case http.MethodPut:
		h.updateSettings(w, r)
	default:
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *SettingsHandler) getSettings(w http.ResponseWriter) {
	settings, err := h.settings.Get()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Settings not found")
			return
		}
		logging.LogError(err, "Failed to load settings")
		writeDetail(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    settings,
	})
}

func (h *SettingsHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req storage.Settings
	if err := readJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	settings, err := h.settings.Upsert(&req)
	if err != nil {
		logging.LogError(err, "Failed to update settings")
		writeDetail(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Settings updated successfully",
		"data":    settings,
	})
}
