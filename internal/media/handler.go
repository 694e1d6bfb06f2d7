package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/halcyonhq/halcyon/internal/kvstore"
)

const offerCacheTTL = 900 * time.Second

// offerKey matches the guest/session/uuid precedence used elsewhere for
// per-speaker keys: a resolved identity wins, then an active session,
// falling back to a bare guest bucket.
func offerKey(uuid, sessionID string) string {
	if uuid != "" {
		return "halcyon:media:last:" + uuid
	}
	if sessionID != "" {
		return "halcyon:media:last:session:" + sessionID
	}
	return "halcyon:media:last:guest"
}

// Handler serves the media intents. Recommend offers a ranked set and
// remembers it, ResolvePick resolves a follow-up "play the second one"
// against that set, and RequestCandidate files the pick with Overseerr. The
// dispatcher routes media_recommend, media_request, and media_add_to_list
// all to Recommend; it does not call ResolvePick or RequestCandidate.
type Handler struct {
	recommender *Recommender
	overseerr   *OverseerrClient
	kv          kvstore.Store
}

func NewHandler(recommender *Recommender, overseerr *OverseerrClient, kv kvstore.Store) *Handler {
	return &Handler{recommender: recommender, overseerr: overseerr, kv: kv}
}

// DetectIntent implements router.MediaClassifier: recognizes media-domain
// phrasing ahead of the general keyword cascade.
func (h *Handler) DetectIntent(lowered string) (string, map[string]any, bool) {
	switch {
	case strings.Contains(lowered, "recommend") && strings.Contains(lowered, "watch"):
		return "media_recommend", map[string]any{}, true
	case strings.Contains(lowered, "add") && strings.Contains(lowered, "list"):
		return "media_add_to_list", map[string]any{}, true
	case containsPick(lowered) && (strings.Contains(lowered, "play") || strings.Contains(lowered, "request")):
		return "media_request", map[string]any{"pick": extractPick(lowered)}, true
	default:
		return "", nil, false
	}
}

func containsPick(lowered string) bool {
	for _, w := range []string{"first", "second", "third", "one", "two", "three"} {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}

func extractPick(lowered string) string {
	for _, w := range []string{"first", "second", "third"} {
		if strings.Contains(lowered, w) {
			return w
		}
	}
	return ""
}

// Recommend fetches and caches an offer set for uuid/sessionID, returning
// the spoken response text.
func (h *Handler) Recommend(ctx context.Context, uuid, sessionID string, scarlet bool) (string, error) {
	recs, err := h.recommender.RecommendForUser(ctx, uuid, 3)
	if err != nil {
		return "", fmt.Errorf("media handler: recommend: %w", err)
	}
	if err := h.cacheOffer(ctx, uuid, sessionID, recs); err != nil {
		return "", err
	}
	return FormatSpoken(recs, scarlet), nil
}

func (h *Handler) cacheOffer(ctx context.Context, uuid, sessionID string, recs []Recommendation) error {
	body, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("media handler: cache offer: %w", err)
	}
	return h.kv.Set(ctx, offerKey(uuid, sessionID), string(body), offerCacheTTL)
}

func (h *Handler) loadOffer(ctx context.Context, uuid, sessionID string) ([]Recommendation, error) {
	raw, ok, err := h.kv.Get(ctx, offerKey(uuid, sessionID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("media handler: no pending recommendation offer")
	}
	var recs []Recommendation
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("media handler: decode offer: %w", err)
	}
	return recs, nil
}

// ResolvePick resolves a spoken ordinal or 1-based integer pick against the
// most recently cached offer set for uuid/sessionID. An integer pick and an
// ordinal word ("first"/"second"/"third") are both 1-indexed; any other
// phrasing defaults to the first offer.
func (h *Handler) ResolvePick(ctx context.Context, uuid, sessionID, pick string, allowSensitive bool) (Candidate, error) {
	recs, err := h.loadOffer(ctx, uuid, sessionID)
	if err != nil {
		return Candidate{}, err
	}

	idx := resolvePickIndex(pick)
	if idx < 1 || idx > len(recs) {
		idx = 1
	}
	candidate := recs[idx-1].Candidate
	if candidate.Adult && !allowSensitive {
		return Candidate{}, fmt.Errorf("media handler: adult content requires an unrestricted speaker")
	}
	return candidate, nil
}

func resolvePickIndex(pick string) int {
	switch strings.ToLower(strings.TrimSpace(pick)) {
	case "first", "one", "1":
		return 1
	case "second", "two", "2":
		return 2
	case "third", "three", "3":
		return 3
	}
	if n, err := strconv.Atoi(strings.TrimSpace(pick)); err == nil {
		return n
	}
	return 1
}

// RequestCandidate submits an Overseerr request for candidate, if an
// Overseerr client is configured.
func (h *Handler) RequestCandidate(ctx context.Context, candidate Candidate) error {
	if h.overseerr == nil {
		return fmt.Errorf("media handler: overseerr is not configured")
	}
	return h.overseerr.RequestMedia(ctx, candidate.TMDBID, "movie")
}
