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

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/events"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

const mergeJobColumns = `uuid, user_id, voice_id, timestamp,
	sentence_count, segment_count, silence_seconds,
	correlation_ids, output_file, output_bytes,
	processing_time_ms, success, error_message`

// MergeJobsStore handles database operations for merge jobs
type MergeJobsStore struct {
	db *Database
}

// NewMergeJobsStore creates a new merge jobs store
func NewMergeJobsStore(db *Database) *MergeJobsStore {
	return &MergeJobsStore{db: db}
}

// Insert stores a new merge job in the database
func (s *MergeJobsStore) Insert(job *events.MergeJob) error {
	if err := job.IsValid(); err != nil {
		return fmt.Errorf("invalid merge job: %w", err)
	}

	idsJSON, err := job.CorrelationIDsJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize correlation ids: %w", err)
	}

	query := `
		INSERT INTO merge_jobs (` + mergeJobColumns + `) VALUES (
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?
		)`

	_, err = s.db.DB().Exec(query,
		job.UUID, job.UserID, job.VoiceID, job.Timestamp,
		job.SentenceCount, job.SegmentCount, job.SilenceSeconds,
		idsJSON, job.OutputFile, job.OutputBytes,
		job.ProcessingTime, job.Success, job.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert merge job: %w", err)
	}

	logging.LogDatabaseOperation("insert", "merge_jobs",
		zap.String("job_uuid", job.UUID),
		zap.Bool("success", job.Success),
	)
	return nil
}

// GetByUUID retrieves a merge job by its UUID
func (s *MergeJobsStore) GetByUUID(uuid string) (*events.MergeJob, error) {
	query := `SELECT ` + mergeJobColumns + ` FROM merge_jobs WHERE uuid = ?`

	row := s.db.DB().QueryRow(query, uuid)
	return s.scanMergeJob(row)
}

// List retrieves merge jobs with pagination and filtering
func (s *MergeJobsStore) List(options ListOptions) ([]*events.MergeJob, error) {
	query, args := s.buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*events.MergeJob
	for rows.Next() {
		job, err := s.scanMergeJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merge job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merge jobs: %w", err)
	}

	return jobs, nil
}

// Count returns the total number of merge jobs matching the filter
func (s *MergeJobsStore) Count(options ListOptions) (int64, error) {
	options.Limit = 0
	options.Offset = 0
	query, args := s.buildListQuery(options)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") as filtered"

	var count int64
	if err := s.db.DB().QueryRow(countQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count merge jobs: %w", err)
	}

	return count, nil
}

// Delete removes a merge job by UUID
func (s *MergeJobsStore) Delete(uuid string) error {
	result, err := s.db.DB().Exec("DELETE FROM merge_jobs WHERE uuid = ?", uuid)
	if err != nil {
		return fmt.Errorf("failed to delete merge job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("merge job %s: %w", uuid, ErrNotFound)
	}

	logging.LogDatabaseOperation("delete", "merge_jobs", zap.String("job_uuid", uuid))
	return nil
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	// Filtering
	UserID    string
	VoiceID   string
	Success   *bool // nil = all, true = success only, false = errors only
	StartTime *time.Time
	EndTime   *time.Time

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "timestamp", "processing_time", "output_bytes"
	SortOrder string // "ASC", "DESC"
}

var sortColumns = map[string]string{
	"timestamp":       "timestamp",
	"processing_time": "processing_time_ms",
	"output_bytes":    "output_bytes",
}

// buildListQuery constructs the SQL query based on ListOptions
func (s *MergeJobsStore) buildListQuery(options ListOptions) (string, []interface{}) {
	query := `SELECT ` + mergeJobColumns + ` FROM merge_jobs WHERE 1=1`

	var args []interface{}

	if options.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, options.UserID)
	}

	if options.VoiceID != "" {
		query += " AND voice_id = ?"
		args = append(args, options.VoiceID)
	}

	if options.Success != nil {
		query += " AND success = ?"
		args = append(args, *options.Success)
	}

	if options.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, *options.StartTime)
	}

	if options.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, *options.EndTime)
	}

	// Column and direction are whitelisted since they cannot be bound
	sortBy, ok := sortColumns[options.SortBy]
	if !ok {
		sortBy = "timestamp"
	}

	sortOrder := "DESC"
	if options.SortOrder == "ASC" {
		sortOrder = "ASC"
	}

	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	return query, args
}

// scanMergeJob scans a database row into a MergeJob struct
func (s *MergeJobsStore) scanMergeJob(scanner interface{}) (*events.MergeJob, error) {
	var job events.MergeJob
	var idsJSON string

	var row interface {
		Scan(dest ...interface{}) error
	}

	switch v := scanner.(type) {
	case *sql.Row:
		row = v
	case *sql.Rows:
		row = v
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}

	err := row.Scan(
		&job.UUID, &job.UserID, &job.VoiceID, &job.Timestamp,
		&job.SentenceCount, &job.SegmentCount, &job.SilenceSeconds,
		&idsJSON, &job.OutputFile, &job.OutputBytes,
		&job.ProcessingTime, &job.Success, &job.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("merge job: %w", ErrNotFound)
		}
		return nil, err
	}

	if err := job.SetCorrelationIDsFromJSON(idsJSON); err != nil {
		return nil, fmt.Errorf("failed to parse correlation ids JSON: %w", err)
	}

	return &job, nil
}
