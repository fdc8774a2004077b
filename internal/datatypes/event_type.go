// Package datatypes defines shared types for catalog mutation events.
package datatypes

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEventType is returned when an event type string is not recognized.
var ErrInvalidEventType = errors.New("invalid event type")

// EventType represents a catalog mutation event type as an enum.
// Use String() to get the wire representation.
type EventType uint16

// Event type constants; string form is given in eventTypeMap. The zero value is
// EventUnknown so a payload without an event field is never read as a creation.
const (
	EventUnknown EventType = iota
	ProductCreated
	ProductUpdated
	ProductDeleted
	ProductFileAdded
	ProductFileRemoved
)

// eventTypeMap is the single source of truth for valid event type strings.
var eventTypeMap = map[string]EventType{
	"product.created":      ProductCreated,
	"product.updated":      ProductUpdated,
	"product.deleted":      ProductDeleted,
	"product_file.added":   ProductFileAdded,
	"product_file.removed": ProductFileRemoved,
}

// shortNames accepts the bare action names emitted by catalog triggers.
var shortNames = map[string]EventType{
	"created":      ProductCreated,
	"updated":      ProductUpdated,
	"deleted":      ProductDeleted,
	"file_added":   ProductFileAdded,
	"file_removed": ProductFileRemoved,
}

var reverseEventTypeMap map[EventType]string

func init() {
	reverseEventTypeMap = make(map[EventType]string, len(eventTypeMap))
	for str, eventType := range eventTypeMap {
		reverseEventTypeMap[eventType] = str
	}
}

// String returns the string representation of an EventType.
// Returns empty string for invalid event types.
func (et EventType) String() string {
	return reverseEventTypeMap[et]
}

// IsValid reports whether et is a known event type.
func (et EventType) IsValid() bool {
	_, ok := reverseEventTypeMap[et]

	return ok
}

// ParseEventType converts a string ("product.updated" or "updated") to an EventType.
func ParseEventType(s string) (EventType, bool) {
	if et, ok := eventTypeMap[s]; ok {
		return et, true
	}

	et, ok := shortNames[s]

	return et, ok
}

// IsValidEventType checks if an event type string is valid.
func IsValidEventType(eventType string) bool {
	_, ok := ParseEventType(eventType)

	return ok
}

// MarshalJSON encodes the event type as its string form.
func (et EventType) MarshalJSON() ([]byte, error) {
	s := et.String()
	if s == "" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEventType, et)
	}

	return json.Marshal(s)
}

// UnmarshalJSON decodes either the long or the short string form.
func (et *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("event type: %w", err)
	}

	parsed, ok := ParseEventType(s)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidEventType, s)
	}

	*et = parsed

	return nil
}
