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

package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

// ErrNoSegments is returned when there is nothing to assemble
var ErrNoSegments = errors.New("no audio segments to assemble")

// Assembler concatenates audio files in order without re-encoding
type Assembler struct {
	runner ToolRunner
}

// NewAssembler creates an assembler backed by runner
func NewAssembler(runner ToolRunner) *Assembler {
	return &Assembler{runner: runner}
}

// Assemble merges paths, in order, into outPath. Every input must exist
// before the tool runs; on failure no output file is left behind.
func (a *Assembler) Assemble(ctx context.Context, paths []string, outPath string) error {
	if len(paths) == 0 {
		return &AssemblyError{Op: "concat", Err: ErrNoSegments}
	}

	for _, path := range paths {
		if !fileExists(path) {
			return &MissingSegmentError{Path: path}
		}
	}

	outDir := filepath.Dir(outPath)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return &AssemblyError{Op: "concat", Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	manifestPath := filepath.Join(outDir, "concat_"+uuid.NewString()+".txt")
	defer Cleanup(manifestPath)

	if err := WriteManifest(manifestPath, paths); err != nil {
		return &AssemblyError{Op: "concat", Err: err}
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		outPath,
	}

	if err := a.runner.Run(ctx, args...); err != nil {
		Cleanup(outPath)
		logging.LogError(err, "Failed to concatenate audio segments",
			zap.Int("segments", len(paths)),
			zap.String("output", outPath),
		)
		return &AssemblyError{Op: "concat", Err: err}
	}

	return nil
}

// WriteManifest writes a concat demuxer list with one absolute path per line
func WriteManifest(manifestPath string, paths []string) error {
	var b strings.Builder
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		fmt.Fprintf(&b, "file '%s'\n", escapeManifestPath(filepath.ToSlash(abs)))
	}

	if err := os.WriteFile(manifestPath, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest returns the paths listed in a manifest written by WriteManifest
func ReadManifest(manifestPath string) ([]string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, "'") {
			continue
		}
		quoted := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		paths = append(paths, strings.ReplaceAll(quoted, `'\''`, "'"))
	}
	return paths, nil
}

// escapeManifestPath quotes single quotes the way the concat demuxer expects
func escapeManifestPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
