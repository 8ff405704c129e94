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

	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

// FormsHandler stores onboarding form answers
type FormsHandler struct {
	answers *storage.AnswersStore
}

// NewFormsHandler creates a new forms handler
func NewFormsHandler(answers *storage.AnswersStore) *FormsHandler {
	return &FormsHandler{answers: answers}
}

// SubmitFormRequest is the body of POST /api/submit-form
type SubmitFormRequest struct {
	Answers []storage.StepAnswer `json:"answers"`
}

// HandleSubmitForm handles POST /api/submit-form
func (h *FormsHandler) HandleSubmitForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SubmitFormRequest
	if err := readJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Answers) == 0 {
		writeDetail(w, http.StatusBadRequest, "Answers are required")
		return
	}

	submission, err := h.answers.Insert(user.UID, req.Answers)
	if err != nil {
		logging.LogError(err, "Failed to store form answers", zap.String("user_id", user.UID))
		writeDetail(w, http.StatusInternalServerError, "Failed to save answers")
		return
	}

	writeJSON(w, http.StatusCreated, submission)
}
