// Package events defines the lifecycle events published by clients and the
// bus that carries them to telemetry, history and the API.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Client lifecycle events
	EventConnecting         EventType = "client_connecting"
	EventConnected          EventType = "client_connected"
	EventDisconnected       EventType = "client_disconnected"
	EventReconnectScheduled EventType = "client_reconnect_scheduled"
	EventFailure            EventType = "client_failure"
	EventCharacterCreated   EventType = "client_character_created"
	EventMapChanged         EventType = "client_map_changed"

	// Extension events
	EventNotification EventType = "notification"
	EventPacketTapped EventType = "packet_tapped"

	// System events
	EventShutdown EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}

	// At is stamped by the bus when the event is emitted.
	At time.Time
}

// SessionPayload identifies the client an event concerns. GUID is always the
// censored form.
type SessionPayload struct {
	GUID   string `json:"guid"`
	Server string `json:"server"`
	Reason string `json:"reason,omitempty"`
}

// FailurePayload carries a server-reported failure.
type FailurePayload struct {
	SessionPayload
	ErrorID     int32  `json:"error_id"`
	Description string `json:"description"`
}

// CharacterPayload is emitted when the server confirms the character.
type CharacterPayload struct {
	SessionPayload
	ObjectID int32 `json:"object_id"`
	CharID   int32 `json:"char_id"`
}

// MapPayload is emitted on every MapInfo.
type MapPayload struct {
	SessionPayload
	Name   string `json:"name"`
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
}

// NotificationLevel is the severity of a notification.
type NotificationLevel string

const (
	LevelMessage NotificationLevel = "message"
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// NotificationPayload is a message an extension wants surfaced to the user.
type NotificationPayload struct {
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Level   NotificationLevel `json:"level"`
}

// PacketPayload describes one packet observed by the packet tap.
type PacketPayload struct {
	GUID   string      `json:"guid"`
	Type   string      `json:"type"`
	Packet interface{} `json:"packet"`
}
