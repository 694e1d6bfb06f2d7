package audio

import "testing"

func TestGenerateChimePCMProducesExpectedByteLength(t *testing.T) {
	pcm := GenerateChimePCM(200, 880, 16000)
	wantSamples := 16000 * 200 / 1000
	if len(pcm) != wantSamples*2 {
		t.Fatalf("len(pcm) = %d, want %d", len(pcm), wantSamples*2)
	}
}

func TestEncodeWAVPCM16LEWrapsChime(t *testing.T) {
	pcm := GenerateChimePCM(50, 880, 16000)
	wav, err := EncodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) <= len(pcm) {
		t.Fatalf("len(wav) = %d, want > len(pcm) = %d (RIFF/fmt headers)", len(wav), len(pcm))
	}
	if string(wav[:4]) != "RIFF" {
		t.Fatalf("wav header = %q, want RIFF", wav[:4])
	}
}
