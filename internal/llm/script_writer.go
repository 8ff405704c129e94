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

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/config"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

const narrationInstructions = "You write voice narration scripts ready to be read by a text-to-speech engine."

// ScriptWriter generates narration scripts with the OpenAI Responses API
type ScriptWriter struct {
	client openai.Client
	model  string
}

// NewScriptWriter creates a writer from config. An empty API key falls back
// to the OPENAI_API_KEY environment lookup done by the SDK.
func NewScriptWriter(cfg config.OpenAIConfig) (*ScriptWriter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("OpenAI model cannot be empty")
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &ScriptWriter{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// WriteScript sends prompt and returns the generated text, trimmed
func (w *ScriptWriter) WriteScript(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	logging.LogLLMOperation("script_start",
		zap.String("model", w.model),
		zap.Int("prompt_length", len(prompt)),
	)
	startTime := time.Now()

	resp, err := w.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        w.model,
		Instructions: openai.String(narrationInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	})
	if err != nil {
		logging.LogError(err, "OpenAI request failed", zap.String("model", w.model))
		return "", fmt.Errorf("OpenAI request failed: %w", err)
	}

	script := strings.TrimSpace(resp.OutputText())
	if script == "" {
		return "", fmt.Errorf("OpenAI returned an empty script")
	}

	logging.LogLLMOperation("script_complete",
		zap.String("model", w.model),
		zap.Int("script_length", len(script)),
		zap.Duration("processing_time", time.Since(startTime)),
	)
	return script, nil
}

// BuildNarrationPrompt combines the user's message with the admin settings
// into a single prompt
func BuildNarrationPrompt(message string, settings *storage.Settings) string {
	var b strings.Builder

	b.WriteString("You are an AI creative assistant.\n\n")
	b.WriteString("User message:\n")
	b.WriteString(strings.TrimSpace(message))
	b.WriteString("\n\n")

	if settings != nil {
		el := settings.ElevenLabsSettings
		b.WriteString("Current voice settings:\n")
		fmt.Fprintf(&b, "- Model ID: %s\n", orNA(el.ModelID))
		fmt.Fprintf(&b, "- Stability: %g\n", el.Stability)
		fmt.Fprintf(&b, "- Speed: %g\n", el.Speed)
		fmt.Fprintf(&b, "- Style: %g\n", el.Style)
		fmt.Fprintf(&b, "- Voice tags: %s\n\n", orNA(el.VoiceTags))

		b.WriteString("Reference scripts from the admin:\n")
		fmt.Fprintf(&b, "Stage 1: %s\n", settings.GPTScriptStageOne)
		fmt.Fprintf(&b, "Stage 2: %s\n", settings.GPTScriptStageTwo)
		fmt.Fprintf(&b, "Demo audio script: %s\n\n", settings.DemoAudioScript)
	}

	b.WriteString("TASK: Based on the user's message and the settings above, write a natural, creative narration script ready for text-to-speech.")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
