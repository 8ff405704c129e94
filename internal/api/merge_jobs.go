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
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/auth"
	"github.com/Sahilpatil2001/mme-fastapi/internal/events"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/security"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

// MergeJobPublisher announces finished merge jobs
type MergeJobPublisher interface {
	PublishMergeCompleted(job *events.MergeJob) error
}

// MergeJobRecorder stores merge jobs and publishes them when a publisher is set
type MergeJobRecorder struct {
	store     *storage.MergeJobsStore
	publisher MergeJobPublisher
}

// NewMergeJobRecorder creates a recorder. publisher may be nil.
func NewMergeJobRecorder(store *storage.MergeJobsStore, publisher MergeJobPublisher) *MergeJobRecorder {
	return &MergeJobRecorder{store: store, publisher: publisher}
}

// Record persists and publishes job. Failures are logged, never returned,
// so bookkeeping cannot fail a merge request.
func (r *MergeJobRecorder) Record(job *events.MergeJob) {
	if r.store != nil {
		if err := r.store.Insert(job); err != nil {
			logging.LogError(err, "Failed to store merge job", zap.String("job_uuid", job.UUID))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishMergeCompleted(job); err != nil {
			logging.LogError(err, "Failed to publish merge job", zap.String("job_uuid", job.UUID))
		}
	}
}

// MergeJobsHandler handles HTTP requests for merge job history
type MergeJobsHandler struct {
	store *storage.MergeJobsStore
}

// NewMergeJobsHandler creates a new merge jobs handler
func NewMergeJobsHandler(store *storage.MergeJobsStore) *MergeJobsHandler {
	return &MergeJobsHandler{store: store}
}

// ListMergeJobsResponse represents the response for listing merge jobs
type ListMergeJobsResponse struct {
	Jobs       []*events.MergeJob `json:"jobs"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// HandleMergeJobs handles GET /api/merge-jobs. An authenticated caller only
// sees their own jobs.
func (h *MergeJobsHandler) HandleMergeJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.listMergeJobs(w, r)
}

// HandleMergeJobByID handles GET /api/merge-jobs/{id}. Jobs owned by another
// user are reported as missing.
func (h *MergeJobsHandler) HandleMergeJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/merge-jobs/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeDetail(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	h.getMergeJobByID(w, r, pathParts[0])
}

// ownerFilter returns the caller's uid; ok is false when the request carries
// no user, which only happens with authentication disabled
func ownerFilter(r *http.Request) (string, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return "", false
	}
	return user.UID, true
}

func (h *MergeJobsHandler) listMergeJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	userID := query.Get("user_id")
	if uid, ok := ownerFilter(r); ok {
		userID = uid
	}

	options := storage.ListOptions{
		UserID:    userID,
		VoiceID:   query.Get("voice_id"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
		SortBy:    query.Get("sort_by"),
		SortOrder: strings.ToUpper(query.Get("sort_order")),
	}

	if successStr := query.Get("success"); successStr != "" {
		if success, err := strconv.ParseBool(successStr); err == nil {
			options.Success = &success
		}
	}

	if startTimeStr := query.Get("start_time"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			options.StartTime = &startTime
		}
	}
	if endTimeStr := query.Get("end_time"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			options.EndTime = &endTime
		}
	}

	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count merge jobs")
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	jobs, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list merge jobs")
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if jobs == nil {
		jobs = []*events.MergeJob{}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	if logging.Sugar != nil {
		logging.Sugar.Infow("Merge jobs API request",
			"endpoint", "list",
			"page", page,
			"page_size", pageSize,
			"total_results", total,
			"filters", map[string]interface{}{
				"voice_id": options.VoiceID,
				"success":  options.Success,
			},
		)
	}

	writeJSON(w, http.StatusOK, ListMergeJobsResponse{
		Jobs:       jobs,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func (h *MergeJobsHandler) getMergeJobByID(w http.ResponseWriter, r *http.Request, uuid string) {
	job, err := h.store.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Merge job not found")
			return
		}
		logging.LogError(err, "Failed to get merge job", zap.String("uuid", security.SanitizeLogInput(uuid)))
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if uid, ok := ownerFilter(r); ok && job.UserID != uid {
		writeDetail(w, http.StatusNotFound, "Merge job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}
