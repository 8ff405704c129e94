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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the MME backend
type Config struct {
	Server     ServerConfig
	Audio      AudioConfig
	ElevenLabs ElevenLabsConfig
	OpenAI     OpenAIConfig
	Auth       AuthConfig
	Storage    StorageConfig
	NATS       NATSConfig
	Logging    LoggingConfig
	CORS       CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AudioConfig holds audio pipeline configuration
type AudioConfig struct {
	Dir           string        // Narration temp files and merged output
	SilenceDir    string        // Cached silence clips
	FFmpegPath    string        // Transcoding tool binary
	FFmpegTimeout time.Duration // Upper bound for a single tool invocation

	MaxPauseSeconds int // Longest accepted pause marker
}

// ElevenLabsConfig holds text-to-speech upstream configuration
type ElevenLabsConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// OpenAIConfig holds text generation configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Empty uses the SDK default
	Model   string
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	TokenTTL  time.Duration
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DBPath string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string // Empty disables event publishing
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// LoadDotEnv loads variables from .env files without overriding the
// environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("MME_HOST", "0.0.0.0"),
			Port:         getEnvInt("MME_PORT", 8000),
			ReadTimeout:  getEnvDuration("MME_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("MME_WRITE_TIMEOUT", 5*time.Minute),
		},
		Audio: AudioConfig{
			Dir:           getEnvString("AUDIO_DIR", "./audios"),
			SilenceDir:    getEnvString("SILENCE_DIR", "./audios"),
			FFmpegPath:    getEnvString("FFMPEG_PATH", "ffmpeg"),
			FFmpegTimeout: getEnvDuration("FFMPEG_TIMEOUT", 2*time.Minute),

			MaxPauseSeconds: getEnvInt("MAX_PAUSE_SECONDS", 600),
		},
		ElevenLabs: ElevenLabsConfig{
			URL:     getEnvString("ELEVENLABS_URL", "https://api.elevenlabs.io"),
			APIKey:  getEnvString("ELEVEN_API_KEY", ""),
			Timeout: getEnvDuration("ELEVENLABS_TIMEOUT", 60*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnvString("OPENAI_API_KEY", ""),
			BaseURL: getEnvString("OPENAI_BASE_URL", ""),
			Model:   getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Auth: AuthConfig{
			Enabled:   getEnvBool("AUTH_ENABLED", true),
			JWTSecret: getEnvString("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("JWT_TTL", 7*24*time.Hour),
		},
		Storage: StorageConfig{
			DBPath: getEnvString("DB_PATH", "./data/mme.db"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", ""),
			Subject:       getEnvString("NATS_SUBJECT", "mme.audio.merged"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.ElevenLabs.URL == "" {
		return fmt.Errorf("ElevenLabs URL must be provided")
	}

	if c.ElevenLabs.Timeout <= 0 {
		return fmt.Errorf("ElevenLabs timeout must be positive: %s", c.ElevenLabs.Timeout)
	}

	if c.Audio.FFmpegTimeout <= 0 {
		return fmt.Errorf("ffmpeg timeout must be positive: %s", c.Audio.FFmpegTimeout)
	}

	if c.Audio.MaxPauseSeconds <= 0 {
		return fmt.Errorf("max pause must be positive: %d", c.Audio.MaxPauseSeconds)
	}

	if c.Audio.Dir == "" || c.Audio.SilenceDir == "" {
		return fmt.Errorf("audio directories must be provided")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when auth is enabled")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT TTL must be positive: %s", c.Auth.TokenTTL)
	}

	return nil
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList reads a comma-separated list, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
