// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package events

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/intelliguard/intelliguard/internal/logging"
)

// loggerAdapter bridges watermill's logging interface onto the global
// zerolog logger. Watermill's Info-level chatter (subscribe/unsubscribe,
// topic creation) is demoted to debug.
type loggerAdapter struct {
	fields watermill.LogFields
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by zerolog.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return loggerAdapter{}
}

func (l loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	logging.Error().Err(err).Fields(l.merged(fields)).Msg(msg)
}

func (l loggerAdapter) Info(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(l.merged(fields)).Msg(msg)
}

func (l loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(l.merged(fields)).Msg(msg)
}

func (l loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(l.merged(fields)).Msg(msg)
}

func (l loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return loggerAdapter{fields: l.fields.Add(fields)}
}

func (l loggerAdapter) merged(fields watermill.LogFields) map[string]interface{} {
	return l.fields.Add(fields)
}
