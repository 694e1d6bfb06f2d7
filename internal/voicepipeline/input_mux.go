package voicepipeline

import "sync"

// FrameSizeBytes is the expected PCM16LE mono frame size at 16kHz/20ms.
const FrameSizeBytes = 640

// STTSink receives well-formed audio frames for an active session.
type STTSink interface {
	PushFrame(sessionID string, frame []byte)
}

// InputMux gates raw mic audio: frames only reach STT once a session has
// been bound to that mic; otherwise the wakeword listener is the only
// consumer. Malformed frames (wrong size) are dropped silently, matching
// upstream satellite firmware that occasionally emits a short final frame.
type InputMux struct {
	sink STTSink

	mu          sync.Mutex
	micSessions map[string]string // micID -> sessionID
	sessionUUID map[string]string // sessionID -> resolved uuid, once known
}

func NewInputMux(sink STTSink) *InputMux {
	return &InputMux{
		sink:        sink,
		micSessions: make(map[string]string),
		sessionUUID: make(map[string]string),
	}
}

// BindSession activates a session for a mic so its frames start flowing to
// STT.
func (m *InputMux) BindSession(micID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.micSessions[micID] = sessionID
}

// ReleaseSession tears down the mic -> session binding, reverting the mic
// to wakeword-only listening.
func (m *InputMux) ReleaseSession(micID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessionID, ok := m.micSessions[micID]
	if !ok {
		return
	}
	delete(m.micSessions, micID)
	delete(m.sessionUUID, sessionID)
}

// SetUUIDForSession records the resolved stable identity once identity
// resolution completes mid-session.
func (m *InputMux) SetUUIDForSession(sessionID, uuid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionUUID[sessionID] = uuid
}

// PushFrame routes a raw audio frame from micID. Frames of the wrong size
// are dropped; frames for a mic with no active session are dropped too
// (the wakeword listener consumes those independently upstream of the mux).
func (m *InputMux) PushFrame(micID string, frame []byte) {
	if len(frame) != FrameSizeBytes {
		return
	}

	m.mu.Lock()
	sessionID, active := m.micSessions[micID]
	m.mu.Unlock()
	if !active {
		return
	}
	m.sink.PushFrame(sessionID, frame)
}
