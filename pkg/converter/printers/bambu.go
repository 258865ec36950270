// Package printers provides printer-specific G-code handlers
package printers

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/soundforge/midi2gcode/pkg/converter"
)

// M1006 is the Bambu Lab "prompt sound" command. A command carries up to
// two voices (C and E) as MIDI note numbers plus sound shaping parameters.
const (
	commandWord = "M1006"

	// MaxVoices is the number of voice fields an M1006 command carries
	MaxVoices = 2

	// Envelope values as emitted by Bambu Studio calibration sounds
	noteEnvelope = 75
	restEnvelope = 60
)

// File framing around the command stream. M17/M18 power the steppers up
// and down; M400 S1 drains the motion queue first.
var (
	gcodeHeader = []string{
		";=====start printer sound ===================",
		"M17",
		"M400 S1",
		"M1006 S1",
		"",
	}
	gcodeFooter = []string{
		"",
		"M1006 W",
		"M18",
		";=====end printer sound ===================",
	}
)

// Bambu implements the Printer interface for Bambu Lab machines
type Bambu struct{}

// NewBambu creates a new Bambu Lab printer handler
func NewBambu() *Bambu {
	return &Bambu{}
}

// Name returns the printer name
func (b *Bambu) Name() string {
	return "Bambu Lab"
}

// ID returns the printer identifier
func (b *Bambu) ID() string {
	return "bambu"
}

// command is one M1006 invocation. Field order in the encoded line is
// A B L C D M E F N, matching Bambu Studio output.
type command struct {
	A, B, L, C, D, M, E, F, N int
}

func (c command) encode() string {
	return fmt.Sprintf("M1006 A%d B%d L%d C%d D%d M%d E%d F%d N%d",
		c.A, c.B, c.L, c.C, c.D, c.M, c.E, c.F, c.N)
}

// sameSound reports whether two commands differ only in duration
func (c command) sameSound(o command) bool {
	c.L, o.L = 0, 0
	return c == o
}

// noteCommand builds a command sounding the given voices. A single voice
// is duplicated into the E field; the printer plays it as one tone.
func noteCommand(notes []uint8, durationMs int) command {
	c := command{B: 10, L: durationMs, D: 15, M: noteEnvelope, F: 10, N: noteEnvelope}
	if len(notes) >= 1 {
		c.C = int(notes[0])
		c.E = int(notes[0])
	}
	if len(notes) >= 2 {
		c.E = int(notes[1])
	}
	return c
}

// restCommand builds a silent command of the given duration
func restCommand(durationMs int) command {
	return command{B: 10, L: durationMs, D: 15, M: restEnvelope, F: 10, N: restEnvelope}
}

// mergeAdjacent collapses runs of commands that differ only in duration,
// summing their L fields
func mergeAdjacent(cmds []command) []command {
	merged := make([]command, 0, len(cmds))
	for _, c := range cmds {
		if n := len(merged); n > 0 && merged[n-1].sameSound(c) {
			merged[n-1].L += c.L
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// GenerateGCode encodes a tone stream as a complete M1006 G-code file
func (b *Bambu) GenerateGCode(tones []converter.Tone) ([]byte, error) {
	cmds := make([]command, 0, len(tones))
	for _, t := range tones {
		if t.DurationMs <= 0 {
			return nil, fmt.Errorf("invalid tone duration: %d ms", t.DurationMs)
		}
		if len(t.Notes) == 0 {
			cmds = append(cmds, restCommand(t.DurationMs))
			continue
		}
		voices := t.Notes
		if len(voices) > MaxVoices {
			voices = voices[:MaxVoices]
		}
		cmds = append(cmds, noteCommand(voices, t.DurationMs))
	}

	cmds = mergeAdjacent(cmds)

	var sb strings.Builder
	for _, line := range gcodeHeader {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	for _, c := range cmds {
		sb.WriteString(c.encode())
		sb.WriteByte('\n')
	}
	for _, line := range gcodeFooter {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	return []byte(sb.String()), nil
}

// ParseGCode decodes an M1006 G-code stream back into tones. Comments,
// setup commands (M1006 S1, M1006 W) and non-M1006 lines are skipped.
func (b *Bambu) ParseGCode(data []byte) ([]converter.Tone, error) {
	if err := b.ValidateGCode(data); err != nil {
		return nil, err
	}

	var tones []converter.Tone

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if !strings.HasPrefix(line, commandWord+" ") {
			continue
		}

		params, err := parseParams(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		// Setup and wait calls (S1, W) carry none of the note fields
		if !hasAny(params, 'A', 'C', 'E', 'L') {
			continue
		}

		duration, ok := params['L']
		if !ok {
			duration = 100
		}
		if duration <= 0 {
			return nil, fmt.Errorf("line %d: invalid duration L%d", lineNo, duration)
		}

		var notes []uint8
		for _, key := range []byte{'A', 'C', 'E'} {
			v, ok := params[key]
			if !ok || v <= 0 || v > 127 {
				continue
			}
			if !containsNote(notes, uint8(v)) {
				notes = append(notes, uint8(v))
			}
		}

		tones = append(tones, converter.Tone{Notes: notes, DurationMs: duration})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan G-code: %w", err)
	}

	if len(tones) == 0 {
		return nil, errors.New("no playable M1006 commands found")
	}

	return tones, nil
}

// ValidateGCode checks that the data looks like an M1006 command stream
func (b *Bambu) ValidateGCode(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty G-code data")
	}
	if !bytes.Contains(data, []byte(commandWord)) {
		return errors.New("no M1006 commands in G-code data")
	}
	return nil
}

// parseParams splits "M1006 A0 B10 L120 ..." into letter/value pairs
func parseParams(line string) (map[byte]int, error) {
	params := make(map[byte]int)
	fields := strings.Fields(line)
	for _, f := range fields[1:] {
		if f[0] < 'A' || f[0] > 'Z' {
			return nil, fmt.Errorf("malformed parameter %q", f)
		}
		// Bare flags like the W in "M1006 W" carry no value
		if len(f) == 1 {
			continue
		}
		v, err := strconv.Atoi(f[1:])
		if err != nil {
			return nil, fmt.Errorf("malformed parameter %q", f)
		}
		params[f[0]] = v
	}
	return params, nil
}

func hasAny(params map[byte]int, keys ...byte) bool {
	for _, k := range keys {
		if _, ok := params[k]; ok {
			return true
		}
	}
	return false
}

func containsNote(notes []uint8, n uint8) bool {
	for _, x := range notes {
		if x == n {
			return true
		}
	}
	return false
}
