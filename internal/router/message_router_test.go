package router

import (
	"testing"

	"github.com/halcyonhq/halcyon/internal/trust"
)

func TestClassifyDisarmAlarmIsSensitiveAndScarlet(t *testing.T) {
	r := New(DefaultConfig(), nil)
	c := r.Classify("please disarm the alarm", trust.RoleOwner)
	if c.Intent != "disarm_alarm" || !c.Sensitive || c.PersonaBias != "SCARLET" {
		t.Fatalf("Classify() = %+v, want disarm_alarm/sensitive/SCARLET", c)
	}
}

func TestClassifyUnlockDoorResolvesDefaultEntity(t *testing.T) {
	r := New(DefaultConfig(), nil)
	c := r.Classify("unlock the door", trust.RoleOwner)
	if c.Intent != "unlock_door" || c.Slots["entity_id"] != "lock.front_door" {
		t.Fatalf("Classify() = %+v, want unlock_door/lock.front_door", c)
	}
}

func TestClassifyLockDoorBiasDependsOnRole(t *testing.T) {
	r := New(DefaultConfig(), nil)
	guest := r.Classify("lock the back door", trust.RoleGuest)
	if guest.PersonaBias != "SCARLET" {
		t.Fatalf("guest lock_door bias = %q, want SCARLET", guest.PersonaBias)
	}
	owner := r.Classify("lock the back door", trust.RoleOwner)
	if owner.PersonaBias != "neutral" {
		t.Fatalf("owner lock_door bias = %q, want neutral", owner.PersonaBias)
	}
}

func TestClassifyTemperatureExtractsNumber(t *testing.T) {
	r := New(DefaultConfig(), nil)
	c := r.Classify("set the thermostat to 72", trust.RoleHousehold)
	if c.Intent != "set_temperature" {
		t.Fatalf("Intent = %q, want set_temperature", c.Intent)
	}
	temp, ok := c.Slots["temperature"].(*float64)
	if !ok || temp == nil || *temp != 72 {
		t.Fatalf("temperature slot = %v, want 72", c.Slots["temperature"])
	}
}

func TestClassifyEmptyTextReturnsNoIntent(t *testing.T) {
	r := New(DefaultConfig(), nil)
	c := r.Classify("   ", trust.RoleOwner)
	if c.Intent != "" || c.Confidence != 0 {
		t.Fatalf("Classify(empty) = %+v, want zero-confidence no-intent", c)
	}
}

func TestClassifyNoMatchBiasesScarletForGuest(t *testing.T) {
	r := New(DefaultConfig(), nil)
	c := r.Classify("tell me a story", trust.RoleGuest)
	if c.Intent != "" || c.PersonaBias != "SCARLET" {
		t.Fatalf("Classify(unmatched, guest) = %+v, want no intent / SCARLET bias", c)
	}
}

type stubMediaClassifier struct {
	intent string
	slots  map[string]any
}

func (s stubMediaClassifier) DetectIntent(lowered string) (string, map[string]any, bool) {
	if s.intent == "" {
		return "", nil, false
	}
	return s.intent, s.slots, true
}

func TestClassifyDefersToMediaClassifierFirst(t *testing.T) {
	r := New(DefaultConfig(), stubMediaClassifier{intent: "media_recommend", slots: map[string]any{}})
	c := r.Classify("unlock the door", trust.RoleOwner)
	if c.Intent != "media_recommend" {
		t.Fatalf("Intent = %q, want media classifier to win the cascade", c.Intent)
	}
}
