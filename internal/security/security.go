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

package security

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidVoiceID is returned when a voice ID format is invalid
	ErrInvalidVoiceID = errors.New("invalid voiceId")

	// voiceIDPattern validates voice IDs to only allow safe characters
	voiceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// maxFileStemLength bounds names derived from user text
const maxFileStemLength = 50

// SanitizeLogInput removes newline characters to prevent log injection attacks
// This function should be used for all user-controlled data before logging
func SanitizeLogInput(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	sanitized = strings.ReplaceAll(sanitized, "\r", "")
	return sanitized
}

// ValidateVoiceID ensures that a voice ID is safe to embed in an upstream URL
// path. Only allows alphanumeric ASCII characters, dashes, and underscores.
func ValidateVoiceID(voiceID string) error {
	if voiceID == "" {
		return ErrInvalidVoiceID
	}

	if strings.Contains(voiceID, "/") || strings.Contains(voiceID, "\\") || strings.Contains(voiceID, "..") {
		return ErrInvalidVoiceID
	}

	if !voiceIDPattern.MatchString(voiceID) {
		return ErrInvalidVoiceID
	}

	return nil
}

// SafeFileStem turns arbitrary text into a lowercase file name stem made of
// ASCII letters, digits and underscores, at most 50 characters long.
// Returns fallback when nothing usable remains.
func SafeFileStem(text, fallback string) string {
	stem := unsafeFileChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "_")
	if len(stem) > maxFileStemLength {
		stem = stem[:maxFileStemLength]
	}
	if strings.Trim(stem, "_") == "" {
		return fallback
	}
	return stem
}
