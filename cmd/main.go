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

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sahilpatil2001/mme-fastapi/internal/audio"
	"github.com/Sahilpatil2001/mme-fastapi/internal/config"
	"github.com/Sahilpatil2001/mme-fastapi/internal/elevenlabs"
	"github.com/Sahilpatil2001/mme-fastapi/internal/llm"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/merge"
	"github.com/Sahilpatil2001/mme-fastapi/internal/messaging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/server"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Storage.DBPath})
	if err != nil {
		logging.LogError(err, "Failed to open database")
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	var natsService *messaging.NATSService
	if cfg.NATS.URL != "" {
		natsService, err = messaging.NewNATSService(cfg.NATS)
		if err == nil {
			err = natsService.Connect()
		}
		if err != nil {
			// Event publishing is optional; merges still work without it
			logging.LogError(err, "NATS unavailable, merge events will not be published")
			natsService = nil
		} else {
			defer natsService.Close()
		}
	}

	tts, err := elevenlabs.NewClient(cfg.ElevenLabs)
	if err != nil {
		log.Fatalf("Failed to create ElevenLabs client: %v", err)
	}
	defer func() { _ = tts.Close() }()

	runner := audio.NewExecRunner(cfg.Audio.FFmpegPath, cfg.Audio.FFmpegTimeout)
	pipeline := merge.NewPipeline(tts,
		audio.NewSilenceCache(cfg.Audio.SilenceDir, runner),
		audio.NewAssembler(runner),
		cfg.Audio.Dir,
	)
	pipeline.SetMaxPauseSeconds(cfg.Audio.MaxPauseSeconds)

	deps := server.Dependencies{
		Database:    db,
		Merger:      pipeline,
		Synthesizer: tts,
		Voices:      tts,
		NATS:        natsService,
	}

	if cfg.OpenAI.APIKey != "" {
		writer, err := llm.NewScriptWriter(cfg.OpenAI)
		if err != nil {
			log.Fatalf("Failed to create script writer: %v", err)
		}
		deps.ScriptWriter = writer
	} else {
		logging.LogWarn("OPENAI_API_KEY is not set, /api/chat is disabled")
	}

	srv, err := server.New(cfg, deps)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Sugar.Infow("Received shutdown signal", "signal", sig.String())
		if err := srv.Stop(); err != nil {
			logging.LogError(err, "Graceful shutdown failed")
		}
	case err := <-errCh:
		if err != nil {
			logging.LogError(err, "Failed to start server")
			logging.Close()
			log.Fatalf("Failed to start server: %v", err)
		}
	}
}
