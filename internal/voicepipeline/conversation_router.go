package voicepipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/halcyonhq/halcyon/internal/kvstore"
	"github.com/halcyonhq/halcyon/internal/persona"
)

// ConversationRouter tracks which room a household member is "actively"
// speaking from, letting them move between rooms mid-conversation ("follow
// me") without having to re-invoke the wakeword in the new room within a
// short grace window.
type ConversationRouter struct {
	kv                kvstore.Store
	registry          *Registry
	followMeMaxGap    time.Duration
	handoffMinConf    float64
}

func NewConversationRouter(kv kvstore.Store, registry *Registry, followMeMaxGapSec, handoffMinConfidence float64) *ConversationRouter {
	return &ConversationRouter{
		kv:             kv,
		registry:       registry,
		followMeMaxGap: time.Duration(followMeMaxGapSec * float64(time.Second)),
		handoffMinConf: handoffMinConfidence,
	}
}

func lastRoomKey(uuid string) string { return "halcyon:voice:last_room:" + uuid }
func lastSeenKey(uuid string) string { return "halcyon:voice:last_seen:" + uuid }
func roomLockKey(uuid string) string { return "halcyon:voice:room_lock:" + uuid }

// SelectActiveRoom resolves the room a reply should be delivered to,
// following the priority order: an explicit room lock (mid-dialogue
// continuation), an arrival hint from the wakeword bus, the last known
// room within the follow-me gap, the configured default room, any
// registered room (which one is not defined when there are several), or an
// error if none apply.
func (c *ConversationRouter) SelectActiveRoom(ctx context.Context, uuid, hintRoom string) (string, error) {
	if roomID, ok, _ := c.kv.Get(ctx, roomLockKey(uuid)); ok && roomID != "" {
		return roomID, nil
	}
	if hintRoom != "" {
		if _, ok := c.registry.Room(hintRoom); ok {
			return hintRoom, nil
		}
	}
	if roomID, ok := c.lastRoomWithinGap(ctx, uuid); ok {
		return roomID, nil
	}
	if def := c.registry.DefaultRoom(); def != "" {
		return def, nil
	}
	ids := c.registry.RoomIDs()
	if len(ids) > 0 {
		return ids[0], nil
	}
	return "", fmt.Errorf("conversation router: no room could be resolved for %s", uuid)
}

func (c *ConversationRouter) lastRoomWithinGap(ctx context.Context, uuid string) (string, bool) {
	roomID, ok, _ := c.kv.Get(ctx, lastRoomKey(uuid))
	if !ok || roomID == "" {
		return "", false
	}
	seenRaw, ok, _ := c.kv.Get(ctx, lastSeenKey(uuid))
	if !ok {
		return "", false
	}
	seenUnix, err := strconv.ParseInt(seenRaw, 10, 64)
	if err != nil {
		return "", false
	}
	if time.Since(time.Unix(seenUnix, 0)) > c.followMeMaxGap {
		return "", false
	}
	return roomID, true
}

// FollowMe records that uuid was just heard in roomID with the given
// handoff confidence. Below handoffMinConfidence the move is ignored so a
// marginal cross-room pickup doesn't hijack an active conversation.
func (c *ConversationRouter) FollowMe(ctx context.Context, uuid, roomID string, confidence float64) error {
	if confidence < c.handoffMinConf {
		return nil
	}
	if err := c.kv.Set(ctx, lastRoomKey(uuid), roomID, 0); err != nil {
		return err
	}
	return c.kv.Set(ctx, lastSeenKey(uuid), strconv.FormatInt(time.Now().Unix(), 10), 0)
}

// LockRoom pins uuid's replies to roomID for the duration of a dialogue
// turn that requires a follow-up (e.g. "which would you like?").
func (c *ConversationRouter) LockRoom(ctx context.Context, uuid, roomID string, ttl time.Duration) error {
	return c.kv.Set(ctx, roomLockKey(uuid), roomID, ttl)
}

func (c *ConversationRouter) ReleaseLock(ctx context.Context, uuid string) error {
	return c.kv.Delete(ctx, roomLockKey(uuid))
}

// LastRoomHint implements RoomHintResolver: it reports the
// room a speaker was last heard in, regardless of the follow-me gap, so a
// wakeword collision can break its tie toward conversational continuity.
func (c *ConversationRouter) LastRoomHint(speakerHint string) (string, bool) {
	roomID, ok, _ := c.kv.Get(context.Background(), lastRoomKey(speakerHint))
	return roomID, ok && roomID != ""
}

// CanSpeakIn reports whether the assistant is permitted to speak aloud in
// roomID right now. Privacy zones are always silent; do-not-disturb zones
// only permit SCARLET (urgent/safety) announcements.
func (c *ConversationRouter) CanSpeakIn(roomID string, mode persona.Mode) bool {
	if c.registry.IsPrivacyZone(roomID) {
		return false
	}
	if c.registry.IsDNDZone(roomID) {
		return mode == persona.ModeScarlet
	}
	return true
}
