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

// Package elevenlabs is a client for the ElevenLabs text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/config"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

// CorrelationHeader is the response header carrying the upstream request id
const CorrelationHeader = "request-id"

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 4096

// VoiceSettings tunes the synthesized voice
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
}

// SynthesisRequest describes one text-to-speech call
type SynthesisRequest struct {
	Text    string
	VoiceID string

	// Neighbouring text for prosody continuity, empty when absent
	PreviousText string
	NextText     string

	ModelID       string
	VoiceSettings *VoiceSettings
}

// SynthesisResult is the outcome of a successful call
type SynthesisResult struct {
	CorrelationID string // Empty when the upstream omitted the header
	FilePath      string
	Bytes         int64
}

// UpstreamError reports a non-success response from the API
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ElevenLabs request failed with status %d: %s", e.StatusCode, e.Body)
}

type speechRequest struct {
	Text          string         `json:"text"`
	PreviousText  *string        `json:"previous_text"`
	NextText      *string        `json:"next_text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
}

type voicesResponse struct {
	Voices []json.RawMessage `json:"voices"`
}

// Client talks to the ElevenLabs REST API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new ElevenLabs client
func NewClient(cfg config.ElevenLabsConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ElevenLabs URL cannot be empty")
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("🔊 ElevenLabs client initialized",
			"url", c.baseURL,
			"timeout", cfg.Timeout,
			"api_key_set", cfg.APIKey != "",
		)
	}

	return c, nil
}

// Synthesize converts text to speech and writes the audio to outPath,
// creating parent directories as needed
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest, outPath string) (*SynthesisResult, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if req.VoiceID == "" {
		return nil, fmt.Errorf("voice ID cannot be empty")
	}

	body, err := json.Marshal(speechRequest{
		Text:          req.Text,
		PreviousText:  optional(req.PreviousText),
		NextText:      optional(req.NextText),
		ModelID:       req.ModelID,
		VoiceSettings: req.VoiceSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	logging.LogTTSOperation("synthesis_start",
		zap.String("voice", req.VoiceID),
		zap.Int("text_length", len(req.Text)),
		zap.Bool("has_previous_text", req.PreviousText != ""),
		zap.Bool("has_next_text", req.NextText != ""),
	)

	startTime := time.Now()

	endpoint := c.baseURL + "/v1/text-to-speech/" + url.PathEscape(req.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		logging.LogError(err, "TTS HTTP request failed",
			zap.String("voice", req.VoiceID),
			zap.Int("text_length", len(req.Text)),
		)
		return nil, fmt.Errorf("TTS HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logging.LogWarn("TTS request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(errBody)),
		)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	written, err := writeFile(outPath, resp.Body)
	if err != nil {
		return nil, err
	}

	// Header lookup is canonicalized, so "Request-Id" and "request-id" both match
	correlationID := resp.Header.Get(CorrelationHeader)
	if correlationID == "" {
		logging.LogWarn("TTS response has no request-id header",
			zap.String("voice", req.VoiceID),
		)
	}

	logging.LogTTSOperation("synthesis_complete",
		zap.String("voice", req.VoiceID),
		zap.Int("text_length", len(req.Text)),
		zap.Duration("processing_time", time.Since(startTime)),
		zap.Int64("bytes", written),
		zap.String("request_id", correlationID),
	)

	return &SynthesisResult{
		CorrelationID: correlationID,
		FilePath:      outPath,
		Bytes:         written,
	}, nil
}

// ListVoices returns the raw voice objects available to the API key
func (c *Client) ListVoices(ctx context.Context) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voices: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	var voices voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	if logging.Sugar != nil {
		logging.Sugar.Debugw("🔊 Retrieved available voices", "count", len(voices.Voices))
	}

	if voices.Voices == nil {
		voices.Voices = []json.RawMessage{}
	}
	return voices.Voices, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return 0, fmt.Errorf("failed to create audio directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create audio file: %w", err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to write audio file: %w", err)
	}

	return n, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
