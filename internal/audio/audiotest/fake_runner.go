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

// Package audiotest provides a ToolRunner that fakes the transcoding tool
// with plain file operations.
package audiotest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Sahilpatil2001/mme-fastapi/internal/audio"
)

// FakeRunner emulates the two invocations the audio package makes.
// Silence renders write "silence:<seconds>\n"; concat writes the byte-wise
// concatenation of the manifest entries in order.
type FakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	// Fail, when set, is consulted before every invocation
	Fail func(args []string) error
}

// Run implements audio.ToolRunner
func (f *FakeRunner) Run(ctx context.Context, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Fail != nil {
		if err := f.Fail(args); err != nil {
			return err
		}
	}
	if len(args) == 0 {
		return fmt.Errorf("no arguments")
	}

	out := args[len(args)-1]
	input := argAfter(args, "-i")

	if strings.HasSuffix(input, ".txt") {
		paths, err := audio.ReadManifest(input)
		if err != nil {
			return err
		}
		var merged bytes.Buffer
		for _, p := range paths {
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			merged.Write(data)
		}
		return os.WriteFile(out, merged.Bytes(), 0600)
	}

	return os.WriteFile(out, []byte("silence:"+argAfter(args, "-t")+"\n"), 0600)
}

// Calls returns a copy of the recorded invocations
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// ConcatCalls returns the number of concat invocations
func (f *FakeRunner) ConcatCalls() int {
	n := 0
	for _, call := range f.Calls() {
		if argAfter(call, "-f") == "concat" {
			n++
		}
	}
	return n
}

// Failing returns a Fail func that rejects invocations whose format flag
// matches format ("lavfi" or "concat") with a ToolError
func Failing(format string, exitCode int, stderr string) func([]string) error {
	return func(args []string) error {
		if argAfter(args, "-f") != format {
			return nil
		}
		return &audio.ToolError{
			Tool:     "ffmpeg",
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderr,
			Err:      fmt.Errorf("exit status %d", exitCode),
		}
	}
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
