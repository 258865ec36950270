package converter

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// defaultMicrosPerBeat is the MIDI default tempo (120 BPM) used until the
// first tempo meta event
const defaultMicrosPerBeat = 500000

// MIDIConverter handles MIDI file parsing and generation
type MIDIConverter struct {
	ticksPerQuarter uint16
	tempo           float64
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter() *MIDIConverter {
	return &MIDIConverter{
		ticksPerQuarter: 480,
		tempo:           120.0,
	}
}

// ParseMIDIFile reads a MIDI file and extracts its note timeline
func (m *MIDIConverter) ParseMIDIFile(filename string) (*Song, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return m.ParseMIDI(data)
}

// ParseMIDI parses MIDI data and extracts the note timeline.
//
// Tempo meta events from every track are collected into a single tempo map
// before note extraction, so format-1 files with a separate conductor track
// come out with correct absolute timing.
func (m *MIDIConverter) ParseMIDI(data []byte) (*Song, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		m.ticksPerQuarter = mt.Resolution()
	}

	tempos := collectTempoMap(s, m.ticksPerQuarter)
	m.tempo = tempos.bpm()

	song := &Song{
		Name:  "MIDI Song",
		Tempo: m.tempo,
	}

	type voice struct {
		start    float64
		velocity uint8
	}

	for _, track := range s.Tracks {
		var currentTick int64
		active := make(map[uint8]voice)

		for _, ev := range track {
			currentTick += int64(ev.Delta)

			msg := ev.Message
			if len(msg) < 3 {
				continue
			}

			status := msg[0]
			noteNum := msg[1]
			velocity := msg[2]

			// Note On: 0x9n nn vv, Note Off: 0x8n nn vv; a Note On with
			// velocity 0 counts as a Note Off
			isNoteOn := status >= 0x90 && status <= 0x9F && velocity > 0
			isNoteOff := (status >= 0x80 && status <= 0x8F) ||
				(status >= 0x90 && status <= 0x9F && velocity == 0)

			switch {
			case isNoteOn:
				active[noteNum] = voice{
					start:    tempos.seconds(currentTick),
					velocity: velocity,
				}
			case isNoteOff:
				v, ok := active[noteNum]
				if !ok {
					// Orphaned note off, ignore
					continue
				}
				delete(active, noteNum)
				now := tempos.seconds(currentTick)
				song.Notes = append(song.Notes, NoteEvent{
					Start:    v.start,
					Note:     noteNum,
					Velocity: v.velocity,
					Duration: now - v.start,
				})
			}
		}
		// Notes still active at end of track never got a note off; drop them
	}

	sort.SliceStable(song.Notes, func(i, j int) bool {
		if song.Notes[i].Start != song.Notes[j].Start {
			return song.Notes[i].Start < song.Notes[j].Start
		}
		return song.Notes[i].Note < song.Notes[j].Note
	})

	return song, nil
}

// GenerateMIDI creates a format-0 SMF from a Song on a fixed 120 BPM grid
func (m *MIDIConverter) GenerateMIDI(song *Song) ([]byte, error) {
	if song == nil {
		return nil, errors.New("nil song")
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	var track smf.Track

	// Tempo meta event (FF 51 03)
	microsecondsPerBeat := uint32(60000000.0 / m.tempo)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}))

	// Time signature 4/4
	track.Add(0, smf.Message([]byte{0xFF, 0x58, 0x04, 0x04, 0x02, 0x18, 0x08}))

	ticksPerSecond := float64(m.ticksPerQuarter) * m.tempo / 60.0

	type timedMessage struct {
		tick     uint32
		off      bool
		note     uint8
		velocity uint8
	}

	msgs := make([]timedMessage, 0, len(song.Notes)*2)
	for _, n := range song.Notes {
		onTick := uint32(math.Round(n.Start * ticksPerSecond))
		offTick := uint32(math.Round((n.Start + n.Duration) * ticksPerSecond))
		if offTick <= onTick {
			offTick = onTick + 1
		}

		velocity := n.Velocity
		if velocity == 0 {
			velocity = 100
		}

		msgs = append(msgs,
			timedMessage{tick: onTick, note: n.Note, velocity: velocity},
			timedMessage{tick: offTick, off: true, note: n.Note},
		)
	}

	// Offs before ons at the same tick so repeated notes re-trigger
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		return msgs[i].off && !msgs[j].off
	})

	channel := uint8(0)
	var currentTick uint32

	for _, tm := range msgs {
		delta := tm.tick - currentTick
		if tm.off {
			track.Add(delta, midi.NoteOff(channel, tm.note))
		} else {
			track.Add(delta, midi.NoteOn(channel, tm.note, tm.velocity))
		}
		currentTick = tm.tick
	}

	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteMIDIFile writes a Song to a MIDI file
func (m *MIDIConverter) WriteMIDIFile(song *Song, filename string) error {
	data, err := m.GenerateMIDI(song)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// tempoPoint is one tempo change with its precomputed absolute time
type tempoPoint struct {
	tick          int64
	microsPerBeat uint32
	seconds       float64
}

// tempoMap converts absolute ticks to absolute seconds across tempo changes
type tempoMap struct {
	resolution uint16
	points     []tempoPoint
}

// collectTempoMap scans every track for tempo meta events (FF 51 03)
func collectTempoMap(s *smf.SMF, resolution uint16) *tempoMap {
	var raw []tempoPoint

	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				us := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if us > 0 {
					raw = append(raw, tempoPoint{tick: tick, microsPerBeat: us})
				}
			}
		}
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].tick < raw[j].tick })

	points := []tempoPoint{{tick: 0, microsPerBeat: defaultMicrosPerBeat}}
	for _, p := range raw {
		if p.tick == 0 {
			points[0].microsPerBeat = p.microsPerBeat
			continue
		}
		points = append(points, p)
	}

	for i := 1; i < len(points); i++ {
		prev := points[i-1]
		points[i].seconds = prev.seconds +
			ticksToSeconds(points[i].tick-prev.tick, prev.microsPerBeat, resolution)
	}

	return &tempoMap{resolution: resolution, points: points}
}

// seconds converts an absolute tick count to seconds
func (tm *tempoMap) seconds(tick int64) float64 {
	i := sort.Search(len(tm.points), func(i int) bool {
		return tm.points[i].tick > tick
	}) - 1
	p := tm.points[i]
	return p.seconds + ticksToSeconds(tick-p.tick, p.microsPerBeat, tm.resolution)
}

// bpm returns the tempo in effect at the start of the file
func (tm *tempoMap) bpm() float64 {
	return 60000000.0 / float64(tm.points[0].microsPerBeat)
}

func ticksToSeconds(ticks int64, microsPerBeat uint32, resolution uint16) float64 {
	return float64(ticks) * float64(microsPerBeat) / 1e6 / float64(resolution)
}
