package audio

import (
	"encoding/binary"
	"math"
)

// GenerateChimePCM synthesizes a short sine-wave tone at sampleRate Hz,
// used for the privacy-zone and do-not-disturb acknowledgement chimes
// played in place of a spoken reply.
func GenerateChimePCM(durationMS int, freqHz float64, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	n := sampleRate * durationMS / 1000
	pcm := make([]byte, n*2)
	const amplitude = 0.3 * 32767
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		sample := int16(amplitude * math.Sin(2*math.Pi*freqHz*t))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}
	return pcm
}
