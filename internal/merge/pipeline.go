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

// Package merge turns a narration script into a single audio file.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/audio"
	"github.com/Sahilpatil2001/mme-fastapi/internal/elevenlabs"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/script"
	"github.com/Sahilpatil2001/mme-fastapi/internal/security"
)

// ErrNoSegments is returned when the script holds neither text nor pauses
var ErrNoSegments = errors.New("No valid sentences or pauses found")

// Synthesizer converts one narration segment into an audio file
type Synthesizer interface {
	Synthesize(ctx context.Context, req elevenlabs.SynthesisRequest, outPath string) (*elevenlabs.SynthesisResult, error)
}

// Request is one merge invocation
type Request struct {
	Sentences []string
	VoiceID   string
}

// MergedAudio is the assembled result of a request
type MergedAudio struct {
	RequestID string
	Data      []byte
	FileName  string
	FilePath  string

	// Upstream correlation ids in synthesis order, empty ids skipped
	CorrelationIDs []string

	Segments []script.Segment
}

// RecentCorrelationIDs returns up to n ids, most recent first
func (m *MergedAudio) RecentCorrelationIDs(n int) []string {
	if n <= 0 || len(m.CorrelationIDs) == 0 {
		return nil
	}
	ids := m.CorrelationIDs
	if len(ids) > n {
		ids = ids[len(ids)-n:]
	}
	recent := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		recent = append(recent, ids[i])
	}
	return recent
}

// Pipeline wires the parser, synthesizer, silence cache and assembler
type Pipeline struct {
	synth     Synthesizer
	silence   *audio.SilenceCache
	assembler *audio.Assembler
	outDir    string
	maxPause  int

	now func() time.Time
}

// NewPipeline creates a pipeline writing narration and output files to outDir
func NewPipeline(synth Synthesizer, silence *audio.SilenceCache, assembler *audio.Assembler, outDir string) *Pipeline {
	return &Pipeline{
		synth:     synth,
		silence:   silence,
		assembler: assembler,
		outDir:    outDir,
		maxPause:  script.DefaultMaxPauseSeconds,
		now:       time.Now,
	}
}

// SetMaxPauseSeconds bounds a single pause marker; scripts over the bound are
// rejected with a ParseError. Zero or less disables the bound.
func (p *Pipeline) SetMaxPauseSeconds(seconds int) {
	p.maxPause = seconds
}

// Merge parses the script, renders every segment in order and concatenates
// them. Narration files are removed before returning, whatever the outcome;
// the merged file stays in the output directory.
func (p *Pipeline) Merge(ctx context.Context, req Request) (*MergedAudio, error) {
	segments, err := script.ParseWithLimit(req.Sentences, p.maxPause)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	requestID := uuid.NewString()
	startTime := time.Now()

	logging.LogAudioProcessing(requestID, "parse",
		zap.Int("lines", len(req.Sentences)),
		zap.Int("narration_segments", script.NarrationCount(segments)),
		zap.Int("silence_seconds", script.TotalSilence(segments)),
	)

	var temps []string
	defer func() { audio.Cleanup(temps...) }()

	paths := make([]string, 0, len(segments))
	var correlationIDs []string

	for i, seg := range segments {
		switch seg.Kind {
		case script.Narration:
			outPath := filepath.Join(p.outDir, fmt.Sprintf("tts_%s_%d.mp3", requestID, i))
			temps = append(temps, outPath)

			result, err := p.synth.Synthesize(ctx, elevenlabs.SynthesisRequest{
				Text:         seg.Text,
				VoiceID:      req.VoiceID,
				PreviousText: seg.PreviousText,
				NextText:     seg.NextText,
			}, outPath)
			if err != nil {
				return nil, fmt.Errorf("failed to synthesize segment %d: %w", i, err)
			}
			if result.CorrelationID != "" {
				correlationIDs = append(correlationIDs, result.CorrelationID)
			}
			paths = append(paths, result.FilePath)

		case script.Silence:
			path, err := p.silence.Get(ctx, seg.DurationSeconds)
			if err != nil {
				return nil, fmt.Errorf("failed to prepare %ds pause: %w", seg.DurationSeconds, err)
			}
			paths = append(paths, path)
		}
	}

	stem := security.SafeFileStem(script.FirstNarration(segments), "merged")
	fileName := fmt.Sprintf("%s_%d.mp3", stem, p.now().UnixMilli())
	outPath := filepath.Join(p.outDir, fileName)

	if err := p.assembler.Assemble(ctx, paths, outPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged audio: %w", err)
	}

	logging.LogAudioProcessing(requestID, "merge_complete",
		zap.String("output", fileName),
		zap.Int("bytes", len(data)),
		zap.Int("segments", len(segments)),
		zap.Strings("correlation_ids", correlationIDs),
		zap.Duration("processing_time", time.Since(startTime)),
	)

	return &MergedAudio{
		RequestID:      requestID,
		Data:           data,
		FileName:       fileName,
		FilePath:       outPath,
		CorrelationIDs: correlationIDs,
		Segments:       segments,
	}, nil
}
