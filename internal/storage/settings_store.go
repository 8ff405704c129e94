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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

// SettingsID is the key of the single settings document
const SettingsID = "singleton-settings"

// ElevenLabsSettings are the admin-tuned synthesis parameters
type ElevenLabsSettings struct {
	ModelID   string  `json:"model_id"`
	Stability float64 `json:"stability"`
	Speed     float64 `json:"speed"`
	Style     float64 `json:"style"`
	VoiceTags string  `json:"voiceTags"`

	VoiceID         string   `json:"voice_id,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
}

// Settings is the admin configuration document
type Settings struct {
	ID                 string             `json:"_id"`
	ElevenLabsSettings ElevenLabsSettings `json:"elevenLabsSettings"`
	GPTScriptStageOne  string             `json:"gptScriptStageOne"`
	GPTScriptStageTwo  string             `json:"gptScriptStageTwo"`
	DemoAudioScript    string             `json:"demoAudioScript"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// SettingsStore handles the admin settings singleton
type SettingsStore struct {
	db *Database
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(db *Database) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the settings, or ErrNotFound before the first Upsert
func (s *SettingsStore) Get() (*Settings, error) {
	var settings Settings
	var elevenJSON string

	err := s.db.DB().QueryRow(`
		SELECT id, eleven_labs_settings, gpt_script_stage_one, gpt_script_stage_two,
			   demo_audio_script, updated_at
		FROM settings WHERE id = ?`, SettingsID).Scan(
		&settings.ID, &elevenJSON, &settings.GPTScriptStageOne, &settings.GPTScriptStageTwo,
		&settings.DemoAudioScript, &settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("settings: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := json.Unmarshal([]byte(elevenJSON), &settings.ElevenLabsSettings); err != nil {
		return nil, fmt.Errorf("failed to parse ElevenLabs settings: %w", err)
	}

	return &settings, nil
}

// Upsert replaces the settings document and returns the stored version
func (s *SettingsStore) Upsert(settings *Settings) (*Settings, error) {
	elevenJSON, err := json.Marshal(settings.ElevenLabsSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize ElevenLabs settings: %w", err)
	}

	_, err = s.db.DB().Exec(`
		INSERT INTO settings (id, eleven_labs_settings, gpt_script_stage_one, gpt_script_stage_two,
			demo_audio_script, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			eleven_labs_settings = excluded.eleven_labs_settings,
			gpt_script_stage_one = excluded.gpt_script_stage_one,
			gpt_script_stage_two = excluded.gpt_script_stage_two,
			demo_audio_script = excluded.demo_audio_script,
			updated_at = excluded.updated_at`,
		SettingsID, string(elevenJSON), settings.GPTScriptStageOne, settings.GPTScriptStageTwo,
		settings.DemoAudioScript, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert settings: %w", err)
	}

	logging.LogDatabaseOperation("upsert", "settings")
	return s.Get()
}
