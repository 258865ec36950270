// Package converter provides conversion between standard MIDI files and
// Bambu Lab M1006 buzzer G-code
package converter

// NoteEvent represents a single note with absolute timing
type NoteEvent struct {
	Start    float64 // Start time in seconds
	Note     uint8   // MIDI note number (0-127)
	Velocity uint8   // Velocity (1-127)
	Duration float64 // Duration in seconds
}

// Song is the timeline extracted from a MIDI file (or reconstructed from
// a G-code stream), sorted by note start time
type Song struct {
	Name  string
	Notes []NoteEvent
	Tempo float64 // BPM at the first tempo event (informational)
}

// End returns the time in seconds at which the last note finishes
func (s *Song) End() float64 {
	var end float64
	for _, n := range s.Notes {
		if t := n.Start + n.Duration; t > end {
			end = t
		}
	}
	return end
}

// Tone is one scheduled buzzer segment. An empty Notes slice is a rest.
type Tone struct {
	Notes      []uint8 // Voices sounding during this segment
	DurationMs int     // Segment length in milliseconds
}

// Options control how a note timeline is scheduled onto the buzzer
type Options struct {
	MaxPolyphony int     // Maximum simultaneous voices
	MinNoteMs    int     // Minimum tone duration in milliseconds
	QuantizeMs   int     // Fixed tone duration; 0 keeps natural durations
	TempoScale   float64 // Playback speed multiplier (2.0 = twice as fast)
}

// DefaultOptions returns the scheduling defaults
func DefaultOptions() Options {
	return Options{
		MaxPolyphony: 2,
		MinNoteMs:    50,
		QuantizeMs:   0,
		TempoScale:   1.0,
	}
}

// Printer interface for printer-specific G-code handling
type Printer interface {
	Name() string
	ID() string
	GenerateGCode(tones []Tone) ([]byte, error)
	ParseGCode(data []byte) ([]Tone, error)
}

// Converter handles format conversions
type Converter struct {
	printer Printer
	opts    Options
}

// New creates a new Converter for the specified printer with default options
func New(printer Printer) *Converter {
	return &Converter{printer: printer, opts: DefaultOptions()}
}

// NewWithOptions creates a new Converter with explicit scheduling options
func NewWithOptions(printer Printer, opts Options) *Converter {
	return &Converter{printer: printer, opts: opts}
}

// GetPrinter returns the current printer
func (c *Converter) GetPrinter() Printer {
	return c.printer
}

// SetPrinter sets the printer used for G-code generation and parsing
func (c *Converter) SetPrinter(printer Printer) {
	c.printer = printer
}

// Options returns the current scheduling options
func (c *Converter) Options() Options {
	return c.opts
}

// SetOptions sets the scheduling options
func (c *Converter) SetOptions(opts Options) {
	c.opts = opts
}
