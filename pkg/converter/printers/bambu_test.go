package printers

import (
	"strings"
	"testing"

	"github.com/soundforge/midi2gcode/pkg/converter"
)

func TestBambuName(t *testing.T) {
	b := NewBambu()
	if b.Name() != "Bambu Lab" {
		t.Errorf("Name() = %q, want %q", b.Name(), "Bambu Lab")
	}
	if b.ID() != "bambu" {
		t.Errorf("ID() = %q, want %q", b.ID(), "bambu")
	}
}

func TestNoteCommandEncoding(t *testing.T) {
	tests := []struct {
		name     string
		notes    []uint8
		duration int
		expected string
	}{
		{
			name:     "two voices",
			notes:    []uint8{60, 64},
			duration: 120,
			expected: "M1006 A0 B10 L120 C60 D15 M75 E64 F10 N75",
		},
		{
			name:     "single voice duplicated into E",
			notes:    []uint8{72},
			duration: 250,
			expected: "M1006 A0 B10 L250 C72 D15 M75 E72 F10 N75",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := noteCommand(tt.notes, tt.duration).encode()
			if got != tt.expected {
				t.Errorf("encode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRestCommandEncoding(t *testing.T) {
	got := restCommand(200).encode()
	expected := "M1006 A0 B10 L200 C0 D15 M60 E0 F10 N60"
	if got != expected {
		t.Errorf("encode() = %q, want %q", got, expected)
	}
}

func TestMergeAdjacent(t *testing.T) {
	cmds := []command{
		noteCommand([]uint8{60}, 100),
		noteCommand([]uint8{60}, 150),
		noteCommand([]uint8{62}, 100),
		restCommand(50),
		restCommand(50),
		noteCommand([]uint8{62}, 100),
	}

	merged := mergeAdjacent(cmds)

	if len(merged) != 4 {
		t.Fatalf("mergeAdjacent() len = %d, want 4", len(merged))
	}
	if merged[0].L != 250 {
		t.Errorf("merged[0].L = %d, want 250", merged[0].L)
	}
	if merged[1].L != 100 {
		t.Errorf("merged[1].L = %d, want 100", merged[1].L)
	}
	if merged[2].L != 100 {
		t.Errorf("merged[2].L = %d, want 100", merged[2].L)
	}
	if merged[3].L != 100 {
		t.Errorf("merged[3].L = %d, want 100", merged[3].L)
	}
}

func TestGenerateGCodeFraming(t *testing.T) {
	b := NewBambu()

	data, err := b.GenerateGCode([]converter.Tone{
		{Notes: []uint8{60}, DurationMs: 100},
	})
	if err != nil {
		t.Fatalf("GenerateGCode() error = %v", err)
	}

	text := string(data)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	if lines[0] != ";=====start printer sound ===================" {
		t.Errorf("first line = %q", lines[0])
	}
	if lines[len(lines)-1] != ";=====end printer sound ===================" {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}

	for _, want := range []string{"M17", "M400 S1", "M1006 S1", "M1006 W", "M18"} {
		if !strings.Contains(text, want+"\n") {
			t.Errorf("output missing %q", want)
		}
	}

	if !strings.Contains(text, "M1006 A0 B10 L100 C60 D15 M75 E60 F10 N75\n") {
		t.Errorf("output missing note command, got:\n%s", text)
	}
}

func TestGenerateGCodeEmptyStream(t *testing.T) {
	b := NewBambu()

	data, err := b.GenerateGCode(nil)
	if err != nil {
		t.Fatalf("GenerateGCode() error = %v", err)
	}

	// Still a valid framed file, just with no tone commands
	text := string(data)
	if !strings.Contains(text, "M1006 S1") || !strings.Contains(text, "M1006 W") {
		t.Errorf("empty stream should keep header/footer, got:\n%s", text)
	}
}

func TestGenerateGCodeTruncatesVoices(t *testing.T) {
	b := NewBambu()

	data, err := b.GenerateGCode([]converter.Tone{
		{Notes: []uint8{60, 64, 67}, DurationMs: 100},
	})
	if err != nil {
		t.Fatalf("GenerateGCode() error = %v", err)
	}

	if !strings.Contains(string(data), "C60 D15 M75 E64") {
		t.Errorf("third voice should be dropped, got:\n%s", string(data))
	}
}

func TestGenerateGCodeInvalidDuration(t *testing.T) {
	b := NewBambu()

	if _, err := b.GenerateGCode([]converter.Tone{{DurationMs: 0}}); err == nil {
		t.Error("GenerateGCode() expected error for zero duration")
	}
	if _, err := b.GenerateGCode([]converter.Tone{{DurationMs: -5}}); err == nil {
		t.Error("GenerateGCode() expected error for negative duration")
	}
}

func TestParseGCodeRoundTrip(t *testing.T) {
	b := NewBambu()

	original := []converter.Tone{
		{Notes: []uint8{60}, DurationMs: 100},
		{Notes: []uint8{62, 65}, DurationMs: 150},
		{DurationMs: 80}, // rest
		{Notes: []uint8{67}, DurationMs: 200},
	}

	data, err := b.GenerateGCode(original)
	if err != nil {
		t.Fatalf("GenerateGCode() error = %v", err)
	}

	parsed, err := b.ParseGCode(data)
	if err != nil {
		t.Fatalf("ParseGCode() error = %v", err)
	}

	if len(parsed) != len(original) {
		t.Fatalf("ParseGCode() tones = %d, want %d", len(parsed), len(original))
	}

	for i, want := range original {
		got := parsed[i]
		if got.DurationMs != want.DurationMs {
			t.Errorf("tone %d: DurationMs = %d, want %d", i, got.DurationMs, want.DurationMs)
		}
		if len(got.Notes) != len(want.Notes) {
			t.Errorf("tone %d: voices = %v, want %v", i, got.Notes, want.Notes)
			continue
		}
		for j := range want.Notes {
			if got.Notes[j] != want.Notes[j] {
				t.Errorf("tone %d voice %d = %d, want %d", i, j, got.Notes[j], want.Notes[j])
			}
		}
	}
}

func TestParseGCodeSkipsNonToneLines(t *testing.T) {
	b := NewBambu()

	input := strings.Join([]string{
		"; a comment",
		"M17",
		"M400 S1",
		"M1006 S1",
		"",
		"M1006 A0 B10 L100 C60 D15 M75 E60 F10 N75",
		"G1 X10 Y10",
		"M1006 W",
		"M18",
	}, "\n")

	tones, err := b.ParseGCode([]byte(input))
	if err != nil {
		t.Fatalf("ParseGCode() error = %v", err)
	}

	if len(tones) != 1 {
		t.Fatalf("ParseGCode() tones = %d, want 1", len(tones))
	}
	if len(tones[0].Notes) != 1 || tones[0].Notes[0] != 60 {
		t.Errorf("tone voices = %v, want [60]", tones[0].Notes)
	}
	if tones[0].DurationMs != 100 {
		t.Errorf("tone duration = %d, want 100", tones[0].DurationMs)
	}
}

func TestParseGCodeInvalid(t *testing.T) {
	b := NewBambu()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"no commands", []byte("G1 X10\nG1 Y10\n")},
		{"setup only", []byte("M1006 S1\nM1006 W\n")},
		{"malformed parameter", []byte("M1006 A0 B10 Lxx C60 D15 M75 E60 F10 N75\n")},
		{"zero duration", []byte("M1006 A0 B10 L0 C60 D15 M75 E60 F10 N75\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.ParseGCode(tt.data); err == nil {
				t.Error("ParseGCode() expected error")
			}
		})
	}
}
