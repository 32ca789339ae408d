package hub

import "strings"

// Conn is one open bidirectional transport channel. Send must not block: a
// transport that cannot accept the payload immediately returns an error, and
// the hub treats the connection as dead from that point on.
type Conn interface {
	Send(payload []byte) error
}

// BroadcastKey is the reserved audience key that reaches every connection on
// every instance.
const BroadcastKey = "all"

const channelPrefix = "bouncehub:ws:"

// UserKey returns the audience key for one user's personal connections.
func UserKey(userID string) string {
	return "user:" + userID
}

// EventKey returns the audience key for everyone viewing one event.
func EventKey(eventID string) string {
	return "event:" + eventID
}

// channelName maps an audience key to its bus channel. One channel per key.
func channelName(key string) string {
	return channelPrefix + key
}

// keyFromChannel recovers the audience key from an inbound bus channel name.
func keyFromChannel(channel string) (string, bool) {
	key, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// audienceKind buckets a key for metrics labels.
func audienceKind(key string) string {
	switch {
	case key == BroadcastKey:
		return "broadcast"
	case strings.HasPrefix(key, "user:"):
		return "user"
	case strings.HasPrefix(key, "event:"):
		return "event"
	default:
		return "other"
	}
}
