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

// Package messaging publishes merge job events over NATS.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Sahilpatil2001/mme-fastapi/internal/config"
	"github.com/Sahilpatil2001/mme-fastapi/internal/events"
	"github.com/Sahilpatil2001/mme-fastapi/internal/logging"
)

// DefaultSubject is the subject merge results are published on
const DefaultSubject = "mme.audio.merged"

// MergeCompletedEvent announces the outcome of a merge request
type MergeCompletedEvent struct {
	*events.MergeJob
	PublishedAt int64 `json:"published_at"`
}

// NATSService handles NATS messaging for merge events
type NATSService struct {
	conn *nats.Conn
	cfg  config.NATSConfig
}

// NewNATSService creates a new NATS service instance
func NewNATSService(cfg config.NATSConfig) (*NATSService, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("NATS URL cannot be empty")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}

	return &NATSService{cfg: cfg}, nil
}

// Connect establishes connection to NATS server
func (ns *NATSService) Connect() error {
	logging.LogNATSEvent(ns.cfg.URL, "connecting")

	opts := []nats.Option{
		nats.Name("mme-fastapi"),
		nats.ReconnectWait(ns.cfg.ReconnectWait),
		nats.MaxReconnects(ns.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(nc.ConnectedUrl(), "reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(ns.cfg.URL, "closed")
		}),
	}

	conn, err := nats.Connect(ns.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	logging.LogNATSEvent(conn.ConnectedUrl(), "connected")
	return nil
}

// Subject returns the subject merge events are published on
func (ns *NATSService) Subject() string {
	return ns.cfg.Subject
}

// PublishMergeCompleted publishes the outcome of a merge job
func (ns *NATSService) PublishMergeCompleted(job *events.MergeJob) error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(MergeCompletedEvent{
		MergeJob:    job,
		PublishedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal merge event: %w", err)
	}

	subject := ns.cfg.Subject
	if err := ns.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	logging.LogNATSEvent(subject, "published",
		zap.String("job_uuid", job.UUID),
		zap.Bool("success", job.Success),
	)
	return nil
}

// SubscribeToMergeCompleted subscribes to merge events
func (ns *NATSService) SubscribeToMergeCompleted(handler func(*MergeCompletedEvent)) (*nats.Subscription, error) {
	if ns.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	subject := ns.cfg.Subject
	return ns.conn.Subscribe(subject, func(msg *nats.Msg) {
		event := MergeCompletedEvent{MergeJob: &events.MergeJob{}}
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.LogError(err, "Error unmarshaling merge event", zap.String("subject", subject))
			return
		}

		logging.LogNATSEvent(subject, "received", zap.String("job_uuid", event.UUID))
		handler(&event)
	})
}

// Flush waits until the server has processed all buffered messages
func (ns *NATSService) Flush() error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}
	return ns.conn.Flush()
}

// Close closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		ns.conn.Close()
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}

// GetStats returns connection statistics
func (ns *NATSService) GetStats() nats.Statistics {
	if ns.conn != nil {
		return ns.conn.Stats()
	}
	return nats.Statistics{}
}
