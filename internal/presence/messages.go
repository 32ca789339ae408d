package presence

import "bouncehub/internal/commentary"

// Inbound message types. Unknown types are ignored for forward compatibility.
const (
	msgGuestLocation    = "guest_location"
	msgGuestStopSharing = "guest_stop_sharing"
	msgChatMessage      = "chat_message"
	msgGuestLeave       = "guest_leave"
)

// Bare-text liveness probe and its reply, outside the JSON envelope.
const (
	pingProbe = "ping"
	pongReply = "pong"
)

// Outbound message types.
const (
	typeInitialState    = "initial_state"
	typeChatHistory     = "chat_history"
	typeGuestJoined     = "guest_joined"
	typeGuestLeft       = "guest_left"
	typeLocationShared  = "guest_location_shared"
	typeLocationStopped = "guest_location_stopped"
	typeChatMessage     = "chat_message"
)

// maxChatLen is the ceiling on chat text length, in runes.
const maxChatLen = 500

type inboundMessage struct {
	Type      string   `json:"type"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Text      string   `json:"text,omitempty"`
}

// AttendeeState is one sharing attendee inside the join snapshot.
type AttendeeState struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type initialStateMessage struct {
	Type      string          `json:"type"`
	EventID   string          `json:"event_id"`
	Attendees []AttendeeState `json:"attendees"`
}

type chatHistoryMessage struct {
	Type     string                 `json:"type"`
	EventID  string                 `json:"event_id"`
	Messages []commentary.ChatEntry `json:"messages"`
}

// noticeMessage announces a presence transition: guest_joined, guest_left,
// or guest_location_stopped.
type noticeMessage struct {
	Type        string `json:"type"`
	EventID     string `json:"event_id"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

type locationSharedMessage struct {
	Type        string  `json:"type"`
	EventID     string  `json:"event_id"`
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type chatMessage struct {
	Type            string `json:"type"`
	EventID         string `json:"event_id"`
	SenderID        string `json:"sender_id,omitempty"`
	Sender          string `json:"sender"`
	Text            string `json:"text"`
	IsCommentary    bool   `json:"is_commentary"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Timestamp       int64  `json:"timestamp"`
}
