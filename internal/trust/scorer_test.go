package trust

import (
	"testing"
	"time"
)

func TestScoreOwnerHomeResolvesOwnerRole(t *testing.T) {
	d := Score(Input{IdentityRoleHint: RoleOwner, Context: ContextHome, VoiceConfidence: 0.9})
	if d.Role != RoleOwner {
		t.Fatalf("Role = %v, want owner", d.Role)
	}
	if !d.AllowSensitive {
		t.Fatalf("AllowSensitive = false, want true for owner at home")
	}
}

func TestScoreLowConfidenceGuestCappedNearGuestMax(t *testing.T) {
	d := Score(Input{Context: ContextHome, Reassurance: 50})
	if d.Score > guestMax {
		t.Fatalf("Score = %v, want capped at guestMax (%v) for an unmatched speaker", d.Score, guestMax)
	}
	if d.Role != RoleGuest {
		t.Fatalf("Role = %v, want guest", d.Role)
	}
}

func TestScoreHighThreatAlwaysPushesTowardScarletRegardlessOfRole(t *testing.T) {
	d := Score(Input{IdentityRoleHint: RoleHousehold, Context: ContextHome, VoiceConfidence: 0.9, Threat: 20})
	if d.PersonaBias != "SCARLET" {
		t.Fatalf("PersonaBias = %q, want SCARLET", d.PersonaBias)
	}
}

func TestScoreHysteresisHoldsPriorWithinCooldownAndBand(t *testing.T) {
	prior := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := Score(Input{
		IdentityRoleHint: RoleHousehold,
		Context:          ContextHome,
		VoiceConfidence:  0.71, // raw score would be ~71, within the hysteresis band of the prior 70
		PriorScore:       70,
		PriorScoredAt:    prior,
		Now:              prior.Add(5 * time.Second), // well within the 20s cooldown
	})
	if d.Score != 70 {
		t.Fatalf("Score = %v, want hysteresis to hold prior score 70", d.Score)
	}
}

func TestScoreHysteresisIgnoredOutsideBand(t *testing.T) {
	prior := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := Score(Input{
		Context:         ContextHome,
		VoiceConfidence: 0.95, // raw score ~95, far outside the hysteresis band of the prior 20
		PriorScore:      20,
		PriorScoredAt:   prior,
		Now:             prior.Add(5 * time.Second),
	})
	if d.Score == 20 {
		t.Fatalf("Score = %v, want the raw score to win outside the hysteresis band", d.Score)
	}
}

func TestScoreIncidentDeniesHouseholdSensitiveAccess(t *testing.T) {
	d := Score(Input{IdentityRoleHint: RoleHousehold, Context: ContextIncident, VoiceConfidence: 0.9})
	if d.Role != RoleHousehold {
		t.Fatalf("Role = %v, want household", d.Role)
	}
	if d.AllowSensitive {
		t.Fatalf("AllowSensitive = true, want false for household during incident")
	}
}

func TestScoreNightOwnerHighVoiceConfidenceOverridesLockout(t *testing.T) {
	d := Score(Input{IdentityRoleHint: RoleOwner, Context: ContextNight, VoiceConfidence: 0.95})
	if d.Role != RoleOwner {
		t.Fatalf("Role = %v, want owner", d.Role)
	}
	if !d.AllowSensitive {
		t.Fatalf("AllowSensitive = false, want true for an owner at night with high voice confidence")
	}
}

func TestScoreOwnerThresholdWithoutOwnerHintResolvesHousehold(t *testing.T) {
	d := Score(Input{Context: ContextHome, VoiceConfidence: 0.95})
	if d.Role != RoleHousehold {
		t.Fatalf("Role = %v, want household when no owner hint accompanies a high score", d.Role)
	}
}
