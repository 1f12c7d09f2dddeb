// Package voice screens applicant voice notes before they reach human
// moderators. A note passes only when it decodes, is long enough, is not
// silent, and shows enough loudness variation to plausibly be live speech.
// Every analysis failure is treated as a failed check (fail-closed).
package voice

import (
	"bytes"
	"errors"
	"io"
	"math"
	"time"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
)

type Reason string

const (
	ReasonUndecodable Reason = "undecodable"
	ReasonTooShort    Reason = "too_short"
	ReasonSilent      Reason = "silent"
	ReasonRobotic     Reason = "robotic"
)

// Verdict is the outcome of screening one voice note.
type Verdict struct {
	OK       bool
	Reasons  []Reason
	Duration time.Duration
}

// Evaluator holds the tunable thresholds. Zero values are not defaulted
// here; callers construct it from validated config.
type Evaluator struct {
	MinDuration       time.Duration
	SilenceFloorDBFS  float64
	VarianceThreshold float64
}

func NewEvaluator(minDuration time.Duration, silenceFloorDBFS, varianceThreshold float64) *Evaluator {
	return &Evaluator{
		MinDuration:       minDuration,
		SilenceFloorDBFS:  silenceFloorDBFS,
		VarianceThreshold: varianceThreshold,
	}
}

// Evaluate screens raw OGG/Opus bytes. It never returns an error: anything
// that cannot be decoded fails the check instead.
func (e *Evaluator) Evaluate(raw []byte) Verdict {
	samples, sampleRate, err := decodeOggOpus(raw)
	if err != nil || sampleRate <= 0 {
		return Verdict{OK: false, Reasons: []Reason{ReasonUndecodable}}
	}
	return e.analyze(samples, sampleRate)
}

// analyze runs the duration, silence and variance checks over mono PCM.
func (e *Evaluator) analyze(samples []int16, sampleRate int) Verdict {
	v := Verdict{
		Duration: time.Duration(len(samples)) * time.Second / time.Duration(sampleRate),
	}

	if v.Duration < e.MinDuration {
		v.Reasons = append(v.Reasons, ReasonTooShort)
	}

	if overallDBFS(samples) < e.SilenceFloorDBFS {
		v.Reasons = append(v.Reasons, ReasonSilent)
	}

	// Loudness variation across one-second windows. Near-constant loudness
	// is the synthetic-speech signature this is tuned to catch.
	windows := windowDBFS(samples, sampleRate)
	if meanAbsDelta(windows) < e.VarianceThreshold {
		v.Reasons = append(v.Reasons, ReasonRobotic)
	}

	v.OK = len(v.Reasons) == 0
	return v
}

// overallDBFS returns the loudness of the whole note relative to full scale.
func overallDBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/float64(math.MaxInt16))
}

// windowDBFS returns per-second loudness values, dropping windows quieter
// than -100 dBFS so leading/trailing silence does not mask a flat voice.
func windowDBFS(samples []int16, sampleRate int) []float64 {
	var out []float64
	for start := 0; start < len(samples); start += sampleRate {
		end := start + sampleRate
		if end > len(samples) {
			end = len(samples)
		}
		db := overallDBFS(samples[start:end])
		if db > -100 {
			out = append(out, db)
		}
	}
	return out
}

// meanAbsDelta mirrors the variance heuristic: average absolute change in
// loudness between consecutive windows. Fewer than two usable windows reads
// as suspicious (fail-closed).
func meanAbsDelta(windows []float64) float64 {
	if len(windows) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(windows); i++ {
		sum += math.Abs(windows[i] - windows[i-1])
	}
	return sum / float64(len(windows))
}

// opusSampleRate is the decoder output rate; pion/opus emits 48 kHz PCM.
const opusSampleRate = 48000

var errNoAudio = errors.New("ogg stream contains no audio packets")

// decodeOggOpus walks the OGG container and decodes every Opus packet to
// 16-bit mono PCM. The decoder handles SILK-mode packets only; hybrid and
// CELT-mode notes fail the decode and therefore the screening (fail-closed).
func decodeOggOpus(raw []byte) ([]int16, int, error) {
	ogg, _, err := oggreader.NewWith(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}

	decoder := opus.NewDecoder()
	// Large enough for a 60 ms frame at 48 kHz mono.
	frame := make([]byte, 5760)

	var samples []int16
	for {
		segments, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		for _, segment := range segments {
			// Comment header pages carry no audio.
			if bytes.HasPrefix(segment, []byte("OpusTags")) || bytes.HasPrefix(segment, []byte("OpusHead")) {
				continue
			}
			if _, _, err := decoder.Decode(segment, frame); err != nil {
				return nil, 0, err
			}
			// Only the packet's actual frame length is PCM; the rest of
			// the buffer is stale.
			n := 2 * packetSamples(segment[0])
			if n > len(frame) {
				n = len(frame)
			}
			for i := 0; i+1 < n; i += 2 {
				samples = append(samples, int16(uint16(frame[i])|uint16(frame[i+1])<<8))
			}
		}
	}
	if len(samples) == 0 {
		return nil, 0, errNoAudio
	}
	return samples, opusSampleRate, nil
}

// packetSamples derives the per-packet output length at 48 kHz from the TOC
// byte. SILK configurations (0-11) cycle through 10/20/40/60 ms frames.
func packetSamples(toc byte) int {
	var ms int
	switch (toc >> 3) % 4 {
	case 0:
		ms = 10
	case 1:
		ms = 20
	case 2:
		ms = 40
	default:
		ms = 60
	}
	return opusSampleRate * ms / 1000
}
