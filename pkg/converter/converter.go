package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatGCode   Format = "gcode"
	FormatUnknown Format = "unknown"
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi":
		return FormatMIDI
	case ".gcode", ".gco", ".g":
		return FormatGCode
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Check for MIDI file signature "MThd"
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	// Buzzer G-code is plain text carrying M1006 commands
	if bytes.Contains(data, []byte("M1006")) {
		return FormatGCode
	}

	return FormatUnknown
}

// ConvertFile converts a file from one format to another
func (c *Converter) ConvertFile(inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown {
		inputFormat = DetectFormatFromContent(data)
	}

	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	var outputData []byte

	switch {
	case inputFormat == FormatMIDI && outputFormat == FormatGCode:
		outputData, err = c.MIDIToGCode(data)
	case inputFormat == FormatGCode && outputFormat == FormatMIDI:
		outputData, err = c.GCodeToMIDI(data)
	default:
		return fmt.Errorf("unsupported conversion: %s to %s", inputFormat, outputFormat)
	}

	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	return nil
}

// MIDIToGCode converts MIDI data to buzzer G-code
func (c *Converter) MIDIToGCode(midiData []byte) ([]byte, error) {
	if c.printer == nil {
		return nil, errors.New("no printer configured")
	}

	midiConv := NewMIDIConverter()
	song, err := midiConv.ParseMIDI(midiData)
	if err != nil {
		return nil, err
	}

	tones := Schedule(song, c.opts)
	return c.printer.GenerateGCode(tones)
}

// GCodeToMIDI converts buzzer G-code back to MIDI data
func (c *Converter) GCodeToMIDI(gcodeData []byte) ([]byte, error) {
	if c.printer == nil {
		return nil, errors.New("no printer configured")
	}

	tones, err := c.printer.ParseGCode(gcodeData)
	if err != nil {
		return nil, err
	}

	midiConv := NewMIDIConverter()
	return midiConv.GenerateMIDI(TonesToSong(tones))
}

// ParseFile reads a MIDI or G-code file into a Song
func (c *Converter) ParseFile(path string) (*Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		format = DetectFormatFromContent(data)
	}

	switch format {
	case FormatMIDI:
		song, err := NewMIDIConverter().ParseMIDI(data)
		if err != nil {
			return nil, err
		}
		song.Name = filepath.Base(path)
		return song, nil
	case FormatGCode:
		if c.printer == nil {
			return nil, errors.New("no printer configured")
		}
		tones, err := c.printer.ParseGCode(data)
		if err != nil {
			return nil, err
		}
		song := TonesToSong(tones)
		song.Name = filepath.Base(path)
		return song, nil
	default:
		return nil, errors.New("unrecognized file format")
	}
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"midi -> gcode",
		"gcode -> midi",
	}
}
