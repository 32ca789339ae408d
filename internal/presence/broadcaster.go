package presence

import (
	"context"

	"bouncehub/internal/commentary"
	"bouncehub/internal/hub"
)

// CommentaryOutput delivers commentary chat entries to an event's audience.
// It satisfies commentary.Broadcaster.
type CommentaryOutput struct {
	hub *hub.Hub
}

func NewCommentaryOutput(h *hub.Hub) *CommentaryOutput {
	return &CommentaryOutput{hub: h}
}

func (o *CommentaryOutput) BroadcastChat(ctx context.Context, eventID string, entry commentary.ChatEntry) error {
	return o.hub.Publish(ctx, hub.EventKey(eventID), chatMessage{
		Type:         typeChatMessage,
		EventID:      eventID,
		Sender:       entry.Sender,
		Text:         entry.Text,
		IsCommentary: entry.Commentary,
		Timestamp:    entry.Timestamp,
	})
}
