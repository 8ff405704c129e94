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

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MergeJob records one merge-audio request and its outcome
type MergeJob struct {
	// Core identification
	UUID      string    `json:"uuid" db:"uuid"`
	UserID    string    `json:"user_id,omitempty" db:"user_id"`
	VoiceID   string    `json:"voice_id" db:"voice_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Script metadata
	SentenceCount  int `json:"sentence_count" db:"sentence_count"`
	SegmentCount   int `json:"segment_count" db:"segment_count"`
	SilenceSeconds int `json:"silence_seconds" db:"silence_seconds"`

	// Output
	CorrelationIDs []string `json:"correlation_ids" db:"correlation_ids"`
	OutputFile     string   `json:"output_file,omitempty" db:"output_file"`
	OutputBytes    int64    `json:"output_bytes" db:"output_bytes"`

	ProcessingTime int64  `json:"processing_time_ms" db:"processing_time_ms"`
	Success        bool   `json:"success" db:"success"`
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`
}

// NewMergeJob creates a new MergeJob with generated UUID and current timestamp
func NewMergeJob(userID, voiceID string, sentenceCount int) *MergeJob {
	return &MergeJob{
		UUID:           uuid.NewString(),
		UserID:         userID,
		VoiceID:        voiceID,
		Timestamp:      time.Now(),
		SentenceCount:  sentenceCount,
		CorrelationIDs: []string{},
		Success:        true,
	}
}

// GetUUID returns the job identifier
func (j *MergeJob) GetUUID() string {
	return j.UUID
}

// SetScript records the parsed shape of the script
func (j *MergeJob) SetScript(segmentCount, silenceSeconds int) {
	j.SegmentCount = segmentCount
	j.SilenceSeconds = silenceSeconds
}

// SetOutput records the merged file and marks processing as complete
func (j *MergeJob) SetOutput(fileName string, size int64, correlationIDs []string) {
	j.OutputFile = fileName
	j.OutputBytes = size
	if correlationIDs != nil {
		j.CorrelationIDs = correlationIDs
	}
	j.ProcessingTime = time.Since(j.Timestamp).Milliseconds()
}

// SetError marks the job as failed with an error message
func (j *MergeJob) SetError(err error) {
	j.Success = false
	j.ErrorMessage = err.Error()
	j.ProcessingTime = time.Since(j.Timestamp).Milliseconds()
}

// CorrelationIDsJSON returns the correlation ids as JSON for database storage
func (j *MergeJob) CorrelationIDsJSON() (string, error) {
	if j.CorrelationIDs == nil {
		return "[]", nil
	}

	data, err := json.Marshal(j.CorrelationIDs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal correlation ids: %w", err)
	}

	return string(data), nil
}

// SetCorrelationIDsFromJSON parses a JSON array and sets the correlation ids
func (j *MergeJob) SetCorrelationIDsFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		j.CorrelationIDs = []string{}
		return nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(jsonStr), &ids); err != nil {
		return fmt.Errorf("failed to unmarshal correlation ids JSON: %w", err)
	}

	j.CorrelationIDs = ids
	return nil
}

// IsValid performs basic validation on the job
func (j *MergeJob) IsValid() error {
	if j.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if j.VoiceID == "" {
		return fmt.Errorf("voiceID is required")
	}

	if j.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if j.SentenceCount < 0 || j.SegmentCount < 0 || j.SilenceSeconds < 0 {
		return fmt.Errorf("counts must not be negative")
	}

	return nil
}

// String returns a human-readable representation of the job
func (j *MergeJob) String() string {
	return fmt.Sprintf("MergeJob{UUID: %s, VoiceID: %s, Segments: %d, Output: %q, Success: %t}",
		j.UUID, j.VoiceID, j.SegmentCount, j.OutputFile, j.Success)
}
