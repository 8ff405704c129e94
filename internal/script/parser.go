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

// Package script turns narration scripts into ordered narration and silence segments.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxPauseSeconds bounds a single pause when no other limit is given
const DefaultMaxPauseSeconds = 600

// Kind identifies the type of a segment
type Kind int

const (
	// Narration is a piece of text to be synthesized
	Narration Kind = iota
	// Silence is a pause of a fixed number of seconds
	Silence
)

// String returns the kind name used in logs
func (k Kind) String() string {
	switch k {
	case Narration:
		return "narration"
	case Silence:
		return "silence"
	default:
		return "unknown"
	}
}

// pauseMarker matches "(<N>s-pause)" markers. The captured token is validated
// separately so that "(1.5s-pause)" is reported instead of read as text.
var pauseMarker = regexp.MustCompile(`(?i)\(\s*([^()]*?)\s*s-pause\s*\)`)

// Segment is one atomic unit of a narration script
type Segment struct {
	Kind            Kind
	Text            string // Narration only
	DurationSeconds int    // Silence only

	// Marker-stripped text of the neighbouring input lines, empty at boundaries
	PreviousText string
	NextText     string
}

// ParseError reports a pause marker whose duration is not a positive run of
// decimal digits, or exceeds the pause limit
type ParseError struct {
	Line  string
	Index int
	Token string

	// Limit is set when the duration was well formed but too long
	Limit int
}

func (e *ParseError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("pause duration %q in line %d exceeds %ds: %q", e.Token, e.Index+1, e.Limit, e.Line)
	}
	return fmt.Sprintf("invalid pause duration %q in line %d: %q", e.Token, e.Index+1, e.Line)
}

// Parse splits the ordered input lines into segments with the default pause
// limit. Text and pause markers are emitted in the order they appear, both
// across and within lines.
func Parse(lines []string) ([]Segment, error) {
	return ParseWithLimit(lines, DefaultMaxPauseSeconds)
}

// ParseWithLimit is Parse with a custom upper bound on a single pause.
// maxPause <= 0 disables the bound.
func ParseWithLimit(lines []string, maxPause int) ([]Segment, error) {
	stripped := make([]string, len(lines))
	for i, line := range lines {
		stripped[i] = stripMarkers(line)
	}

	var segments []Segment
	for i, line := range lines {
		var prev, next string
		if i > 0 {
			prev = stripped[i-1]
		}
		if i < len(lines)-1 {
			next = stripped[i+1]
		}

		lineSegments, err := parseLine(line, i, prev, next, maxPause)
		if err != nil {
			return nil, err
		}
		segments = append(segments, lineSegments...)
	}

	return segments, nil
}

func parseLine(line string, index int, prev, next string, maxPause int) ([]Segment, error) {
	var segments []Segment

	appendText := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		segments = append(segments, Segment{
			Kind:         Narration,
			Text:         text,
			PreviousText: prev,
			NextText:     next,
		})
	}

	cursor := 0
	for _, loc := range pauseMarker.FindAllStringSubmatchIndex(line, -1) {
		appendText(line[cursor:loc[0]])

		token := line[loc[2]:loc[3]]
		seconds, err := parseSeconds(token)
		if err != nil || seconds <= 0 {
			return nil, &ParseError{Line: line, Index: index, Token: token}
		}
		if maxPause > 0 && seconds > maxPause {
			return nil, &ParseError{Line: line, Index: index, Token: token, Limit: maxPause}
		}
		segments = append(segments, Segment{Kind: Silence, DurationSeconds: seconds})

		cursor = loc[1]
	}
	appendText(line[cursor:])

	return segments, nil
}

// parseSeconds accepts ASCII digits only; strconv alone would take a sign
func parseSeconds(token string) (int, error) {
	if token == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(token)
}

// stripMarkers removes pause markers and collapses whitespace
func stripMarkers(line string) string {
	return strings.Join(strings.Fields(pauseMarker.ReplaceAllString(line, " ")), " ")
}

// NarrationCount returns the number of narration segments
func NarrationCount(segments []Segment) int {
	n := 0
	for _, s := range segments {
		if s.Kind == Narration {
			n++
		}
	}
	return n
}

// TotalSilence returns the summed duration of all silence segments in seconds
func TotalSilence(segments []Segment) int {
	total := 0
	for _, s := range segments {
		if s.Kind == Silence {
			total += s.DurationSeconds
		}
	}
	return total
}

// FirstNarration returns the text of the first narration segment, or "" if none
func FirstNarration(segments []Segment) string {
	for _, s := range segments {
		if s.Kind == Narration {
			return s.Text
		}
	}
	return ""
}
