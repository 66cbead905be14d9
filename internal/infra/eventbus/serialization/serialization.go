// Package serialization converts domain event payloads to and from their
// JSON wire form. The topic (and therefore the event type) determines the
// concrete payload type; there is no self-describing envelope on the wire.
package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/domain/events"
)

// SerializePayload converts a domain event payload into its JSON wire form.
func SerializePayload(eventType events.EventType, payload any) ([]byte, error) {
	switch eventType {
	case classification.EventTypeJobRequested:
		evt, ok := payload.(classification.JobRequestedEvent)
		if !ok {
			return nil, fmt.Errorf("payload for %s is %T, want JobRequestedEvent", eventType, payload)
		}
		return json.Marshal(evt)
	case classification.EventTypeResultReceived:
		evt, ok := payload.(classification.ResultReceivedEvent)
		if !ok {
			return nil, fmt.Errorf("payload for %s is %T, want ResultReceivedEvent", eventType, payload)
		}
		return json.Marshal(evt)
	default:
		return nil, fmt.Errorf("no serializer registered for event type %s", eventType)
	}
}

// DeserializePayload parses JSON wire bytes into the typed payload for the
// given event type. Decode errors are terminal for the message; callers are
// expected to skip rather than retry.
func DeserializePayload(eventType events.EventType, data []byte) (any, error) {
	switch eventType {
	case classification.EventTypeJobRequested:
		var evt classification.JobRequestedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		return evt, nil
	case classification.EventTypeResultReceived:
		var evt classification.ResultReceivedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("no deserializer registered for event type %s", eventType)
	}
}
