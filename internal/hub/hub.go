// Package hub is the per-instance connection registry. It fans messages out
// to audiences (one user, one event, or everyone) and bridges instances
// through Redis pub/sub: every publish goes out on the bus channel for its
// audience key, and one listener per instance re-dispatches inbound bus
// messages to the local connections registered under that key.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const reconnectBackoff = time.Second

// Hub tracks live connections by audience key and owns the bus listener.
// Cross-instance coordination happens exclusively through the bus; the
// audience map is only ever touched by this instance.
type Hub struct {
	log *slog.Logger
	bus *redis.Client // nil means no bus: fan-out is local-only

	mu            sync.RWMutex
	audiences     map[string]map[Conn]struct{}
	registrations int
	ps            *redis.PubSub // live subscription, nil while disconnected

	backoff time.Duration
}

// New constructs a hub. A nil bus client keeps the hub fully functional for a
// single instance; Publish then delivers straight to local connections.
func New(log *slog.Logger, bus *redis.Client) *Hub {
	return &Hub{
		log:       log,
		bus:       bus,
		audiences: make(map[string]map[Conn]struct{}),
		backoff:   reconnectBackoff,
	}
}

// Register adds a connection under an audience key. The first connection for
// a key subscribes the instance's listener to the matching bus channel, and
// the first connection overall subscribes to the broadcast channel. Always
// succeeds; registering the same connection twice under one key is a no-op.
func (h *Hub) Register(conn Conn, key string) {
	h.mu.Lock()
	set := h.audiences[key]
	if set == nil {
		set = make(map[Conn]struct{})
		h.audiences[key] = set
	}
	if _, ok := set[conn]; ok {
		h.mu.Unlock()
		return
	}
	firstForKey := len(set) == 0
	firstOverall := h.registrations == 0
	set[conn] = struct{}{}
	h.registrations++
	ps := h.ps
	h.mu.Unlock()

	if ps == nil {
		return
	}
	if firstForKey {
		h.subscribe(ps, key)
	}
	if firstOverall {
		h.subscribe(ps, BroadcastKey)
	}
}

// Unregister removes a connection from an audience key. When the key's set
// becomes empty the bus subscription is torn down. Idempotent.
func (h *Hub) Unregister(conn Conn, key string) {
	h.mu.Lock()
	set := h.audiences[key]
	if set == nil {
		h.mu.Unlock()
		return
	}
	if _, ok := set[conn]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, conn)
	h.registrations--
	emptiedKey := len(set) == 0
	if emptiedKey {
		delete(h.audiences, key)
	}
	lastOverall := h.registrations == 0
	ps := h.ps
	h.mu.Unlock()

	if ps == nil {
		return
	}
	if emptiedKey {
		h.unsubscribe(ps, key)
	}
	if lastOverall {
		h.unsubscribe(ps, BroadcastKey)
	}
}

// Remove drops a connection from every audience it is registered under. Used
// when the transport is known dead so later sends don't have to rediscover it
// key by key.
func (h *Hub) Remove(conn Conn) {
	h.mu.Lock()
	var emptied []string
	for key, set := range h.audiences {
		if _, ok := set[conn]; !ok {
			continue
		}
		delete(set, conn)
		h.registrations--
		if len(set) == 0 {
			delete(h.audiences, key)
			emptied = append(emptied, key)
		}
	}
	lastOverall := h.registrations == 0
	ps := h.ps
	h.mu.Unlock()

	if ps == nil {
		return
	}
	for _, key := range emptied {
		h.unsubscribe(ps, key)
	}
	if lastOverall && len(emptied) > 0 {
		h.unsubscribe(ps, BroadcastKey)
	}
}

// Publish serializes v and publishes it on the bus channel for the audience
// key. Every instance, including this one, receives it through the listener,
// so delivery is uniform whether the audience is local or remote. If the bus
// is unreachable the message still reaches connections on this instance;
// remote instances miss it until the bus is back.
func (h *Hub) Publish(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", key, err)
	}
	publishedTotal.WithLabelValues(audienceKind(key)).Inc()

	if h.bus == nil {
		h.deliverLocal(key, payload)
		return nil
	}
	if err := h.bus.Publish(ctx, channelName(key), payload).Err(); err != nil {
		busFallbacksTotal.Inc()
		h.log.Warn("bus publish failed, delivering local-only", "key", key, "error", err)
		h.deliverLocal(key, payload)
	}
	return nil
}

// PublishBroadcast publishes against the reserved all-users key.
func (h *Hub) PublishBroadcast(ctx context.Context, v any) error {
	return h.Publish(ctx, BroadcastKey, v)
}

// Run drives the bus listener until ctx is cancelled. On connection loss it
// reconnects with a fixed backoff and resubscribes to exactly the channels
// matching the audience keys registered at that moment.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		h.log.Info("hub running without a bus, fan-out is local-only")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		ps := h.bus.Subscribe(ctx)
		h.mu.Lock()
		h.ps = ps
		channels := h.channelsLocked()
		h.mu.Unlock()

		if len(channels) > 0 {
			if err := ps.Subscribe(ctx, channels...); err != nil {
				h.log.Warn("bus resubscribe failed", "error", err)
			}
		}

		err := h.listen(ctx, ps)

		h.mu.Lock()
		h.ps = nil
		h.mu.Unlock()
		_ = ps.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		busReconnectsTotal.Inc()
		h.log.Warn("bus listener disconnected, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.backoff):
		}
	}
}

func (h *Hub) listen(ctx context.Context, ps *redis.PubSub) error {
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		key, ok := keyFromChannel(msg.Channel)
		if !ok {
			continue
		}
		h.deliverLocal(key, []byte(msg.Payload))
	}
}

// deliverLocal sends a payload to every local connection under key. A failed
// send marks that connection dead and prunes it everywhere; one bad
// connection never blocks delivery to its siblings.
func (h *Hub) deliverLocal(key string, payload []byte) {
	h.mu.RLock()
	var targets []Conn
	if key == BroadcastKey {
		seen := make(map[Conn]struct{}, h.registrations)
		for _, set := range h.audiences {
			for c := range set {
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				targets = append(targets, c)
			}
		}
	} else {
		for c := range h.audiences[key] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	var dead []Conn
	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			dead = append(dead, c)
			continue
		}
		deliveredTotal.Inc()
	}
	for _, c := range dead {
		deadConnectionsTotal.Inc()
		h.Remove(c)
	}
}

// channelsLocked recomputes the bus channel set from current registry state.
// Caller holds h.mu.
func (h *Hub) channelsLocked() []string {
	channels := make([]string, 0, len(h.audiences)+1)
	for key, set := range h.audiences {
		if len(set) > 0 {
			channels = append(channels, channelName(key))
		}
	}
	if h.registrations > 0 {
		channels = append(channels, channelName(BroadcastKey))
	}
	return channels
}

func (h *Hub) subscribe(ps *redis.PubSub, key string) {
	if err := ps.Subscribe(context.Background(), channelName(key)); err != nil {
		h.log.Warn("bus subscribe failed", "key", key, "error", err)
	}
}

func (h *Hub) unsubscribe(ps *redis.PubSub, key string) {
	if err := ps.Unsubscribe(context.Background(), channelName(key)); err != nil {
		h.log.Warn("bus unsubscribe failed", "key", key, "error", err)
	}
}
