// Package identity resolves transient per-utterance speaker IDs produced by
// diarization into stable household identities and roles, persisting the
// alias map to disk between restarts.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultRole = "guest"

// Record is the persisted state for one stable identity.
type Record struct {
	Role      string             `json:"role"`
	Aliases   map[string]float64 `json:"aliases"` // alias -> unix seconds last seen
	CreatedAt float64            `json:"created_at"`
}

type document struct {
	Identities map[string]Record `json:"identities"`
}

type cacheEntry struct {
	uuid   string
	role   string
	expiry time.Time
}

type aliasEntry struct {
	uuid     string
	lastSeen time.Time
}

// Resolver maps speaker_temp_id to (stable_uuid, role).
type Resolver struct {
	mapPath            string
	cacheTTL           time.Duration
	aliasTTL           time.Duration
	minVoiceConfidence float64
	degradeConfidence  float64

	mu         sync.Mutex
	cache      map[string]cacheEntry
	identities map[string]Record
	aliasIndex map[string]aliasEntry
}

// Option configures NewResolver with non-default thresholds.
type Option func(*Resolver)

func WithCacheTTL(d time.Duration) Option     { return func(r *Resolver) { r.cacheTTL = d } }
func WithAliasTTL(d time.Duration) Option     { return func(r *Resolver) { r.aliasTTL = d } }
func WithMinVoiceConfidence(v float64) Option { return func(r *Resolver) { r.minVoiceConfidence = v } }
func WithDegradeConfidence(v float64) Option  { return func(r *Resolver) { r.degradeConfidence = v } }

// NewResolver loads (or initializes) the identity map at mapPath.
func NewResolver(mapPath string, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		mapPath:            mapPath,
		cacheTTL:           180 * time.Second,
		aliasTTL:           7 * 24 * time.Hour,
		minVoiceConfidence: 0.55,
		degradeConfidence:  0.35,
		cache:              make(map[string]cacheEntry),
		identities:         make(map[string]Record),
		aliasIndex:         make(map[string]aliasEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.minVoiceConfidence < 0 || r.minVoiceConfidence > 1 {
		return nil, fmt.Errorf("min_voice_confidence must be within [0, 1]")
	}
	if r.degradeConfidence < 0 || r.degradeConfidence > 1 {
		return nil, fmt.Errorf("degrade_confidence must be within [0, 1]")
	}
	if r.degradeConfidence > r.minVoiceConfidence {
		return nil, fmt.Errorf("degrade_confidence must be <= min_voice_confidence")
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) load() error {
	data, err := os.ReadFile(r.mapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read identity map: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		backup := r.mapPath + ".bak"
		if werr := os.WriteFile(backup, data, 0o600); werr != nil {
			return fmt.Errorf("backup corrupt identity map: %w", werr)
		}
		r.identities = make(map[string]Record)
		r.aliasIndex = make(map[string]aliasEntry)
		return nil
	}

	now := time.Now()
	r.identities = make(map[string]Record)
	r.aliasIndex = make(map[string]aliasEntry)
	for stableUUID, rec := range doc.Identities {
		if rec.Role == "" {
			rec.Role = defaultRole
		}
		kept := make(map[string]float64, len(rec.Aliases))
		for alias, ts := range rec.Aliases {
			lastSeen := time.Unix(int64(ts), 0)
			if now.Sub(lastSeen) <= r.aliasTTL {
				kept[alias] = ts
				r.aliasIndex[alias] = aliasEntry{uuid: stableUUID, lastSeen: lastSeen}
			}
		}
		rec.Aliases = kept
		r.identities[stableUUID] = rec
	}
	return nil
}

func (r *Resolver) save() error {
	doc := document{Identities: r.identities}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity map: %w", err)
	}
	if dir := filepath.Dir(r.mapPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity map dir: %w", err)
		}
	}
	tmp := r.mapPath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write identity map temp file: %w", err)
	}
	if err := os.Rename(tmp, r.mapPath); err != nil {
		return fmt.Errorf("rename identity map: %w", err)
	}
	return nil
}

// Resolve maps a transient speaker ID to a stable UUID and role. An
// unexpired cache entry for the speaker is returned first, whatever the
// voice confidence. Otherwise a voice confidence below degradeConfidence
// falls back to an unbound guest; a confidence between degradeConfidence and
// minVoiceConfidence can still resolve a known alias but degrades its role
// to guest.
func (r *Resolver) Resolve(speakerTempID string, voiceProb float64) (uuid string, role string) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[speakerTempID]; ok && cached.expiry.After(now) {
		return cached.uuid, cached.role
	}

	if entry, ok := r.lookupAlias(speakerTempID, now); ok && voiceProb >= r.degradeConfidence {
		resolvedRole := entry.role
		if voiceProb < r.minVoiceConfidence {
			resolvedRole = defaultRole
		}
		r.remember(speakerTempID, entry.uuid, resolvedRole, now)
		return entry.uuid, resolvedRole
	}

	return "", defaultRole
}

type aliasLookup struct {
	uuid string
	role string
}

func (r *Resolver) lookupAlias(speakerTempID string, now time.Time) (aliasLookup, bool) {
	entry, ok := r.aliasIndex[speakerTempID]
	if !ok {
		return aliasLookup{}, false
	}
	if now.Sub(entry.lastSeen) > r.aliasTTL {
		delete(r.aliasIndex, speakerTempID)
		if rec, ok := r.identities[entry.uuid]; ok {
			delete(rec.Aliases, speakerTempID)
			r.identities[entry.uuid] = rec
			_ = r.save()
		}
		return aliasLookup{}, false
	}
	rec, ok := r.identities[entry.uuid]
	if !ok {
		return aliasLookup{}, false
	}
	return aliasLookup{uuid: entry.uuid, role: rec.Role}, true
}

func (r *Resolver) remember(speakerTempID, stableUUID, role string, now time.Time) {
	r.cache[speakerTempID] = cacheEntry{uuid: stableUUID, role: role, expiry: now.Add(r.cacheTTL)}
	rec, ok := r.identities[stableUUID]
	if !ok {
		return
	}
	if rec.Aliases == nil {
		rec.Aliases = make(map[string]float64)
	}
	rec.Aliases[speakerTempID] = float64(now.Unix())
	r.identities[stableUUID] = rec
	r.aliasIndex[speakerTempID] = aliasEntry{uuid: stableUUID, lastSeen: now}
}

// RegisterIdentity associates a transient speaker with a stable identity and
// role, persisting the map immediately.
func (r *Resolver) RegisterIdentity(speakerTempID, stableUUID, role string) error {
	if role == "" {
		role = defaultRole
	}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.identities[stableUUID]
	if !ok {
		rec = Record{Role: role, Aliases: make(map[string]float64), CreatedAt: float64(now.Unix())}
	}
	rec.Role = role
	if rec.Aliases == nil {
		rec.Aliases = make(map[string]float64)
	}
	rec.Aliases[speakerTempID] = float64(now.Unix())
	r.identities[stableUUID] = rec
	r.aliasIndex[speakerTempID] = aliasEntry{uuid: stableUUID, lastSeen: now}
	r.remember(speakerTempID, stableUUID, role, now)
	return r.save()
}

// EnrollNewIdentity mints a fresh stable UUID for speakerTempID and registers
// it under role, for the enrollment flow where no prior identity exists yet
// (e.g. a household member's first "this is me" confirmation).
func (r *Resolver) EnrollNewIdentity(speakerTempID, role string) (string, error) {
	stableUUID := uuid.NewString()
	if err := r.RegisterIdentity(speakerTempID, stableUUID, role); err != nil {
		return "", err
	}
	return stableUUID, nil
}

// ForgetIdentity removes a stable identity and all of its aliases, returning
// the number of aliases removed.
func (r *Resolver) ForgetIdentity(stableUUID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.identities[stableUUID]
	if !ok {
		return 0, nil
	}
	delete(r.identities, stableUUID)
	for alias := range rec.Aliases {
		delete(r.cache, alias)
		delete(r.aliasIndex, alias)
	}
	if err := r.save(); err != nil {
		return 0, err
	}
	return len(rec.Aliases), nil
}
