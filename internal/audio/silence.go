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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

// Silence clips share the layout of the narration the upstream returns
const (
	silenceSampleRate = 44100
	silenceChannels   = "mono"
)

// SilenceCache renders and memoizes one silent mp3 clip per duration.
// The file on disk is authoritative; the map only saves a stat on hits.
type SilenceCache struct {
	dir    string
	runner ToolRunner

	mu    sync.Mutex
	paths map[int]string

	generated atomic.Int64
}

// NewSilenceCache creates a cache that stores clips in dir
func NewSilenceCache(dir string, runner ToolRunner) *SilenceCache {
	return &SilenceCache{
		dir:    dir,
		runner: runner,
		paths:  make(map[int]string),
	}
}

// Path returns the conventional location of the clip for the given duration
func (c *SilenceCache) Path(seconds int) string {
	return filepath.Join(c.dir, fmt.Sprintf("silence_%ds.mp3", seconds))
}

// Generated returns how many clips this cache has rendered
func (c *SilenceCache) Generated() int64 {
	return c.generated.Load()
}

// Get returns the path of a silent clip of exactly seconds, rendering it on
// first use. Concurrent renders of the same duration are harmless: each one
// writes a private temp file and renames it into place.
func (c *SilenceCache) Get(ctx context.Context, seconds int) (string, error) {
	if seconds <= 0 {
		return "", fmt.Errorf("silence duration must be positive: %d", seconds)
	}

	c.mu.Lock()
	path, ok := c.paths[seconds]
	c.mu.Unlock()

	if !ok {
		path = c.Path(seconds)
	}
	if fileExists(path) {
		c.remember(seconds, path)
		return path, nil
	}

	if err := c.render(ctx, seconds, path); err != nil {
		return "", err
	}

	c.remember(seconds, path)
	return path, nil
}

func (c *SilenceCache) remember(seconds int, path string) {
	c.mu.Lock()
	c.paths[seconds] = path
	c.mu.Unlock()
}

func (c *SilenceCache) render(ctx context.Context, seconds int, path string) error {
	if err := os.MkdirAll(c.dir, 0750); err != nil {
		return &AssemblyError{Op: "silence", Err: fmt.Errorf("failed to create silence directory: %w", err)}
	}

	tmp := filepath.Join(c.dir, fmt.Sprintf(".silence_%ds_%s.mp3", seconds, uuid.NewString()))
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=%s", silenceSampleRate, silenceChannels),
		"-t", strconv.Itoa(seconds),
		"-q:a", "9",
		"-acodec", "libmp3lame",
		tmp,
	}

	if err := c.runner.Run(ctx, args...); err != nil {
		Cleanup(tmp)
		logging.LogError(err, "Failed to render silence clip", zap.Int("seconds", seconds))
		return &AssemblyError{Op: "silence", Err: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		Cleanup(tmp)
		return &AssemblyError{Op: "silence", Err: fmt.Errorf("failed to store silence clip: %w", err)}
	}

	c.generated.Add(1)
	if logging.Sugar != nil {
		logging.Sugar.Infow("🎵 Silence clip generated",
			"seconds", seconds,
			"path", path,
		)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
