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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

// StepAnswer is one answered question of the onboarding form
type StepAnswer struct {
	StepNumber int             `json:"stepNumber"`
	StepTitle  string          `json:"stepTitle"`
	Question   string          `json:"question"`
	Answer     json.RawMessage `json:"answer"`
}

// Submission is a stored set of form answers
type Submission struct {
	ID        string       `json:"_id"`
	UserID    string       `json:"userId"`
	Answers   []StepAnswer `json:"answers"`
	CreatedAt time.Time    `json:"-"`
}

// AnswersStore handles database operations for form submissions
type AnswersStore struct {
	db *Database
}

// NewAnswersStore creates a new answers store
func NewAnswersStore(db *Database) *AnswersStore {
	return &AnswersStore{db: db}
}

// Insert stores a submission for userID and returns it with its generated id
func (s *AnswersStore) Insert(userID string, answers []StepAnswer) (*Submission, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is required")
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("answers are required")
	}

	data, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize answers: %w", err)
	}

	submission := &Submission{
		ID:        uuid.NewString(),
		UserID:    userID,
		Answers:   answers,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.DB().Exec(`INSERT INTO answers (id, user_id, answers, created_at) VALUES (?, ?, ?, ?)`,
		submission.ID, submission.UserID, string(data), submission.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert answers: %w", err)
	}

	logging.LogDatabaseOperation("insert", "answers",
		zap.String("submission_id", submission.ID),
		zap.Int("answers", len(answers)),
	)
	return submission, nil
}

// ListByUser returns a user's submissions, newest first
func (s *AnswersStore) ListByUser(userID string) ([]*Submission, error) {
	rows, err := s.db.DB().Query(`
		SELECT id, user_id, answers, created_at
		FROM answers WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var submissions []*Submission
	for rows.Next() {
		var sub Submission
		var data string
		if err := rows.Scan(&sub.ID, &sub.UserID, &data, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan answers: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &sub.Answers); err != nil {
			return nil, fmt.Errorf("failed to parse answers JSON: %w", err)
		}
		submissions = append(submissions, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answers: %w", err)
	}

	return submissions, nil
}
