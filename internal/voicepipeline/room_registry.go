// Package voicepipeline implements the household audio-routing layer:
// room registry, wakeword arbitration, the input multiplexer gating STT,
// the conversation router tracking "follow me" room state, and the output
// router delivering replies to the right Wyoming satellite.
package voicepipeline

import (
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Room describes one physical room's voice satellite.
type Room struct {
	ID          string `yaml:"id"`
	MicID       string `yaml:"mic_id"`
	WyomingHost string `yaml:"wyoming_host"`
	WyomingPort int    `yaml:"wyoming_port"`
}

type roomsDocument struct {
	Rooms []Room `yaml:"rooms"`
}

// Registry holds the validated set of configured rooms plus the privacy/DND
// zone classifications layered on top via environment variables.
type Registry struct {
	rooms        map[string]Room
	micToRoom    map[string]string
	defaultRoom  string
	privacyZones map[string]bool
	dndZones     map[string]bool
}

// LoadRegistry parses the YAML room manifest at path, validating every room
// and applying PRIVACY_ZONES/DND_ZONES/DEFAULT_ROOM from the environment.
func LoadRegistry(path string, privacyZones, dndZones []string, defaultRoomEnv string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read room registry: %w", err)
	}

	var doc roomsDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse room registry: %w", err)
	}
	if len(doc.Rooms) == 0 {
		return nil, fmt.Errorf("room registry %s declares no rooms", path)
	}

	r := &Registry{
		rooms:        make(map[string]Room, len(doc.Rooms)),
		micToRoom:    make(map[string]string, len(doc.Rooms)),
		privacyZones: toSet(privacyZones),
		dndZones:     toSet(dndZones),
	}

	for _, room := range doc.Rooms {
		if strings.TrimSpace(room.ID) == "" {
			return nil, fmt.Errorf("room registry: room id must not be empty")
		}
		if strings.TrimSpace(room.MicID) == "" {
			return nil, fmt.Errorf("room registry: room %s: mic_id must not be empty", room.ID)
		}
		if room.WyomingPort < 1 || room.WyomingPort > 65535 {
			return nil, fmt.Errorf("room registry: room %s: wyoming_port must be in [1, 65535], got %d", room.ID, room.WyomingPort)
		}
		r.rooms[room.ID] = room
		r.micToRoom[room.MicID] = room.ID
		probeConnectivity(room)
	}

	if defaultRoomEnv != "" {
		if _, ok := r.rooms[defaultRoomEnv]; !ok {
			return nil, fmt.Errorf("room registry: DEFAULT_ROOM %q does not match a configured room", defaultRoomEnv)
		}
		r.defaultRoom = defaultRoomEnv
	} else {
		r.defaultRoom = doc.Rooms[0].ID
	}

	return r, nil
}

// probeConnectivity performs a best-effort, non-fatal TCP dial to the room's
// Wyoming endpoint so startup logs surface obviously misconfigured rooms
// without blocking the rest of the fleet from coming up.
func probeConnectivity(room Room) {
	addr := net.JoinHostPort(room.WyomingHost, fmt.Sprintf("%d", room.WyomingPort))
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		log.Printf("room registry: room %s: wyoming endpoint %s unreachable: %v", room.ID, addr, err)
		return
	}
	conn.Close()
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func (r *Registry) Room(id string) (Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) RoomForMic(micID string) (string, bool) {
	id, ok := r.micToRoom[micID]
	return id, ok
}

func (r *Registry) DefaultRoom() string { return r.defaultRoom }

func (r *Registry) IsPrivacyZone(roomID string) bool { return r.privacyZones[roomID] }

func (r *Registry) IsDNDZone(roomID string) bool { return r.dndZones[roomID] }

func (r *Registry) RoomIDs() []string {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}
