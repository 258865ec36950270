// Package preview renders buzzer tone streams to WAV audio so output can
// be checked without a printer
package preview

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/soundforge/midi2gcode/pkg/converter"
)

const (
	// SampleRate of the rendered audio in Hz
	SampleRate = 44100

	masterVolume = 0.25
	interToneGap = 0.008 // seconds of silence between commands
	fadeDuration = 0.004 // seconds of fade in/out per tone
	octaveShift  = 12    // semitones; the buzzer reads low otherwise

	// Amplitude for the standard note envelope (M75), on the same rough
	// scale the printer maps its shaping parameters to
	toneAmplitude = 0.10 + 0.75*0.35
)

// Render synthesizes a tone stream into 16-bit PCM mono WAV data
func Render(tones []converter.Tone) []byte {
	var samples []float64

	for _, t := range tones {
		n := int(SampleRate * float64(t.DurationMs) / 1000.0)
		if n <= 0 {
			continue
		}

		if len(t.Notes) == 0 {
			samples = append(samples, make([]float64, n)...)
		} else {
			samples = append(samples, renderTone(t.Notes, n)...)
		}

		// Small gap between commands restores the pauses the printer
		// introduces while draining each command
		gapSamples := float64(SampleRate) * interToneGap
		samples = append(samples, make([]float64, int(gapSamples))...)
	}

	for i, s := range samples {
		s *= masterVolume
		samples[i] = clamp(s, -1.0, 1.0)
	}

	return encodeWAV(samples)
}

// renderTone synthesizes n samples of the given voices mixed together
func renderTone(notes []uint8, n int) []float64 {
	freqs := make([]float64, len(notes))
	for i, note := range notes {
		freqs[i] = NoteFrequency(note)
	}

	out := make([]float64, n)
	for i := range out {
		t := float64(i) / SampleRate
		var sum float64
		for _, f := range freqs {
			sum += buzzerWave(f, t)
		}
		out[i] = sum / float64(len(freqs)) * toneAmplitude
	}

	applyFade(out)
	return out
}

// NoteFrequency maps a MIDI note number to Hz with the preview octave
// shift applied (A4 = 440 Hz)
func NoteFrequency(note uint8) float64 {
	n := clamp(float64(note)+octaveShift, 0, 127)
	return 440.0 * math.Pow(2.0, (n-69.0)/12.0)
}

// buzzerWave approximates the stepper buzzer timbre: a sine fundamental
// with second and third harmonics
func buzzerWave(freq, t float64) float64 {
	x := math.Sin(2 * math.Pi * freq * t)
	x += 0.45 * math.Sin(2*math.Pi*2*freq*t)
	x += 0.20 * math.Sin(2*math.Pi*3*freq*t)
	return x
}

// applyFade ramps the first and last few milliseconds to avoid clicks
func applyFade(samples []float64) {
	fadeSamples := fadeDuration * float64(SampleRate)
	fade := int(fadeSamples)
	if fade > len(samples)/2 {
		fade = len(samples) / 2
	}
	for i := 0; i < fade; i++ {
		g := float64(i) / float64(fade)
		samples[i] *= g
		samples[len(samples)-1-i] *= g
	}
}

// encodeWAV wraps float samples in a 16-bit PCM mono RIFF/WAVE container
func encodeWAV(samples []float64) []byte {
	dataSize := len(samples) * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))           // chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))            // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))            // mono
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))   // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, int16(clamp(s, -1.0, 1.0)*32767))
	}

	return buf.Bytes()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
