// Package audit mirrors journal events onto the structured log stream.
// The durable audit trail is the journal_events table, written inside
// the same transaction as the state change; this package only gives
// operators a live view of the same events.
package audit

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/telavista/visit-server-go/internal/model"
)

type Entry struct {
	Type        model.EventType
	EncounterID string
	ActorID     string
	Details     map[string]interface{}
}

func Record(entry Entry) {
	logger := log.With().
		Str("audit", "encounter").
		Str("event_type", string(entry.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if entry.EncounterID != "" {
		logger = logger.With().Str("encounter_id", entry.EncounterID).Logger()
	}
	if entry.ActorID != "" {
		logger = logger.With().Str("actor_id", entry.ActorID).Logger()
	}

	logEvent := logger.Info()
	for k, v := range entry.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
