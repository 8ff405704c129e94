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

// Package server wires the HTTP routes of the merge service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/Sahilpatil2001/mme-fastapi/internal/api"
	"github.com/Sahilpatil2001/mme-fastapi/internal/auth"
	"github.com/Sahilpatil2001/mme-fastapi/internal/config"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/merge"
	"github.com/Sahilpatil2001/mme-fastapi/internal/messaging"
	"github.com/Sahilpatil2001/mme-fastapi/internal/storage"
)

// publicPaths skip the session token check
var publicPaths = []string{"/health", "/api/register", "/api/login"}

// Dependencies are the collaborators the routes are built from
type Dependencies struct {
	Database    *storage.Database
	Merger      api.Merger
	Synthesizer merge.Synthesizer
	Voices      api.VoiceLister

	// Optional
	ScriptWriter api.ScriptWriter
	NATS         *messaging.NATSService
}

// Server is the HTTP front of the merge service
type Server struct {
	cfg     *config.Config
	deps    Dependencies
	mux     *http.ServeMux
	handler http.Handler
	server  *http.Server

	users  *storage.UsersStore
	issuer *auth.TokenIssuer
}

// New creates a server and registers its routes
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Database == nil || deps.Merger == nil || deps.Synthesizer == nil || deps.Voices == nil {
		return nil, fmt.Errorf("database, merger, synthesizer and voice lister are required")
	}

	s := &Server{
		cfg:   cfg,
		deps:  deps,
		mux:   http.NewServeMux(),
		users: storage.NewUsersStore(deps.Database),
	}

	if cfg.Auth.JWTSecret != "" {
		issuer, err := auth.NewTokenIssuer(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to create token issuer: %w", err)
		}
		s.issuer = issuer
	} else if cfg.Auth.Enabled {
		return nil, fmt.Errorf("JWT secret is required when auth is enabled")
	}

	s.routes()

	var handler http.Handler = s.mux
	if cfg.Auth.Enabled {
		handler = auth.Middleware(s.issuer, s.users, publicPaths...)(handler)
	} else {
		logging.LogWarn("Authentication is disabled")
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{api.CorrelationHeader},
		AllowCredentials: true,
	}).Handler(handler)

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves HTTP until Stop is called
func (s *Server) Start() error {
	if logging.Sugar != nil {
		logging.Sugar.Infow("🚀 MME backend starting",
			"addr", s.server.Addr,
			"auth_enabled", s.cfg.Auth.Enabled,
			"nats_enabled", s.deps.NATS != nil,
		)
	}

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if logging.Sugar != nil {
		logging.Sugar.Infow("🛑 Shutting down MME backend")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("✅ MME backend shut down successfully")
	}
	return nil
}

func (s *Server) routes() {
	db := s.deps.Database
	mergeJobs := storage.NewMergeJobsStore(db)
	settings := storage.NewSettingsStore(db)

	var publisher api.MergeJobPublisher
	if s.deps.NATS != nil {
		publisher = s.deps.NATS
	}

	mergeAudio := api.NewMergeAudioHandler(s.deps.Merger, api.NewMergeJobRecorder(mergeJobs, publisher))
	jobs := api.NewMergeJobsHandler(mergeJobs)
	accounts := api.NewAuthHandler(s.users, s.issuer)
	users := api.NewUsersHandler(s.users)
	forms := api.NewFormsHandler(storage.NewAnswersStore(db))
	admin := api.NewSettingsHandler(settings)
	voices := api.NewVoicesHandler(s.deps.Voices)
	chat := api.NewChatHandler(s.deps.ScriptWriter, settings, s.deps.Synthesizer, s.cfg.Audio.Dir)

	s.mux.HandleFunc("/health", s.handleHealth)

	s.mux.HandleFunc("/api/merge-audio", mergeAudio.HandleMergeAudio)
	s.mux.HandleFunc("/merge-audio", mergeAudio.HandleMergeAudio)
	s.mux.HandleFunc("/api/merge-jobs", jobs.HandleMergeJobs)
	s.mux.HandleFunc("/api/merge-jobs/", jobs.HandleMergeJobByID)

	s.mux.HandleFunc("/api/register", accounts.HandleRegister)
	s.mux.HandleFunc("/api/login", accounts.HandleLogin)
	s.mux.HandleFunc("/api/get-user", users.HandleGetUser)
	s.mux.HandleFunc("/api/user", users.HandleUser)
	s.mux.HandleFunc("/api/user/me", users.HandleUpdateMe)
	s.mux.HandleFunc("/api/submit-form", forms.HandleSubmitForm)
	s.mux.HandleFunc("/api/admin/settings", admin.HandleSettings)
	s.mux.HandleFunc("/api/voices", voices.HandleVoices)
	s.mux.HandleFunc("/api/chat", chat.HandleChat)

	if logging.Sugar != nil {
		logging.Sugar.Infow("🌐 HTTP routes configured",
			"merge_endpoint", "/api/merge-audio",
			"jobs_endpoint", "/api/merge-jobs",
			"chat_enabled", s.deps.ScriptWriter != nil,
		)
	}
}

// handleHealth reports the state of the database and the event bus
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	database := "ok"
	if err := s.deps.Database.Ping(); err != nil {
		logging.LogError(err, "Health check database ping failed")
		database = "error"
	}

	nats := "disabled"
	if s.deps.NATS != nil {
		nats = "disconnected"
		if s.deps.NATS.IsConnected() {
			nats = "connected"
		}
	}

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"database":  database,
		"nats":      nats,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		logging.LogError(err, "Failed to write health response")
	}
}
