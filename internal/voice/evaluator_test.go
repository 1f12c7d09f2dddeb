package voice

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testRate = 16000

func defaultEvaluator() *Evaluator {
	return NewEvaluator(3*time.Second, -50.0, 2.0)
}

// sine produces seconds of a 220 Hz tone; amplitudes gives the peak
// amplitude for each one-second window.
func sine(amplitudes ...float64) []int16 {
	samples := make([]int16, 0, len(amplitudes)*testRate)
	for _, amp := range amplitudes {
		for i := 0; i < testRate; i++ {
			v := amp * math.Sin(2*math.Pi*220*float64(i)/testRate)
			samples = append(samples, int16(v))
		}
	}
	return samples
}

func TestAnalyze_PassesLiveSpeechShape(t *testing.T) {
	// Loud enough, long enough, and loudness that moves between windows.
	samples := sine(2000, 12000, 3000, 15000, 2500)

	v := defaultEvaluator().analyze(samples, testRate)

	assert.True(t, v.OK, "reasons: %v", v.Reasons)
	assert.Equal(t, 5*time.Second, v.Duration)
	assert.Empty(t, v.Reasons)
}

func TestAnalyze_TooShort(t *testing.T) {
	samples := sine(2000, 12000)

	v := defaultEvaluator().analyze(samples, testRate)

	assert.False(t, v.OK)
	assert.Contains(t, v.Reasons, ReasonTooShort)
	assert.Equal(t, 2*time.Second, v.Duration)
}

func TestAnalyze_Silent(t *testing.T) {
	// Peak amplitude 50 sits around -59 dBFS, under the -50 floor.
	samples := sine(50, 50, 50, 50)

	v := defaultEvaluator().analyze(samples, testRate)

	assert.False(t, v.OK)
	assert.Contains(t, v.Reasons, ReasonSilent)
}

func TestAnalyze_FlatLoudnessReadsAsSynthetic(t *testing.T) {
	// Loud but constant: no window-to-window variation.
	samples := sine(10000, 10000, 10000, 10000)

	v := defaultEvaluator().analyze(samples, testRate)

	assert.False(t, v.OK)
	assert.Equal(t, []Reason{ReasonRobotic}, v.Reasons)
}

func TestAnalyze_EmptyInputFailsClosed(t *testing.T) {
	v := defaultEvaluator().analyze(nil, testRate)

	assert.False(t, v.OK)
	assert.Contains(t, v.Reasons, ReasonTooShort)
	assert.Contains(t, v.Reasons, ReasonSilent)
}

func TestEvaluate_GarbageBytesFailClosed(t *testing.T) {
	v := defaultEvaluator().Evaluate([]byte("definitely not an ogg container"))

	assert.False(t, v.OK)
	assert.Equal(t, []Reason{ReasonUndecodable}, v.Reasons)
}

func TestEvaluate_EmptyBytesFailClosed(t *testing.T) {
	v := defaultEvaluator().Evaluate(nil)

	assert.False(t, v.OK)
	assert.Equal(t, []Reason{ReasonUndecodable}, v.Reasons)
}

func TestPacketSamples(t *testing.T) {
	// TOC configs 0-11 are SILK; the frame duration cycles 10/20/40/60 ms.
	assert.Equal(t, 480, packetSamples(0<<3))  // NB 10 ms
	assert.Equal(t, 960, packetSamples(1<<3))  // NB 20 ms
	assert.Equal(t, 1920, packetSamples(2<<3)) // NB 40 ms
	assert.Equal(t, 2880, packetSamples(3<<3)) // NB 60 ms
	assert.Equal(t, 960, packetSamples(9<<3))  // WB 20 ms
}

func TestMeanAbsDelta(t *testing.T) {
	assert.Zero(t, meanAbsDelta(nil))
	assert.Zero(t, meanAbsDelta([]float64{-20}))
	// |(-10)-(-20)| + |(-25)-(-10)| = 25, over 3 windows.
	assert.InDelta(t, 25.0/3.0, meanAbsDelta([]float64{-20, -10, -25}), 1e-9)
}
