// Package main is the entry point for the midi2gcode CLI
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundforge/midi2gcode/pkg/api"
	"github.com/soundforge/midi2gcode/pkg/converter"
	"github.com/soundforge/midi2gcode/pkg/converter/printers"
	"github.com/soundforge/midi2gcode/pkg/preview"
	"github.com/soundforge/midi2gcode/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile     string
	outputFile  string
	printerName string
	serverPort  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midi2gcode",
	Short: "Convert MIDI files to Bambu Lab buzzer G-code",
	Long: `midi2gcode converts standard MIDI files into M1006 G-code that plays
music on the buzzer of Bambu Lab 3D printers, and decodes such G-code
back into MIDI or WAV audio.

Examples:
  midi2gcode convert song.mid -o song.gcode
  midi2gcode midi2gcode song.mid --polyphony 1 --quantize-ms 160
  midi2gcode gcode2midi song.gcode
  midi2gcode preview song.gcode -o song.wav
  midi2gcode inspect song.gcode
  midi2gcode tui
  midi2gcode serve --port 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between formats",
	Long:  `Automatically detects the input format and converts to the output format based on file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var midi2gcodeCmd = &cobra.Command{
	Use:   "midi2gcode <input.mid>",
	Short: "Convert MIDI to M1006 G-code",
	Args:  cobra.ExactArgs(1),
	RunE:  runMIDIToGCode,
}

var gcode2midiCmd = &cobra.Command{
	Use:   "gcode2midi <input.gcode>",
	Short: "Convert M1006 G-code to MIDI",
	Args:  cobra.ExactArgs(1),
	RunE:  runGCodeToMIDI,
}

var previewCmd = &cobra.Command{
	Use:   "preview <input>",
	Short: "Render a MIDI or G-code file to a WAV audio preview",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Show the note timeline of a MIDI or G-code file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./midi2gcode.yaml or ~/.config/midi2gcode/midi2gcode.yaml)")
	rootCmd.PersistentFlags().StringVarP(&printerName, "printer", "P", "bambu", "Target printer (bambu)")
	rootCmd.PersistentFlags().Int("polyphony", 2, "Maximum simultaneous voices")
	rootCmd.PersistentFlags().Int("min-note-ms", 50, "Minimum tone duration in milliseconds")
	rootCmd.PersistentFlags().Int("quantize-ms", 0, "Fixed tone duration in milliseconds (0 keeps natural durations)")
	rootCmd.PersistentFlags().Float64("tempo-scale", 1.0, "Playback speed multiplier")

	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	midi2gcodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .gcode file path")
	gcode2midiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")
	previewCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .wav file path")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(midi2gcodeCmd)
	rootCmd.AddCommand(gcode2midiCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("midi2gcode")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "midi2gcode"))
		}
	}

	viper.SetEnvPrefix("MIDI2GCODE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func getPrinter() converter.Printer {
	switch strings.ToLower(printerName) {
	case "bambu", "bambulab", "bambu-lab":
		return printers.NewBambu()
	default:
		return printers.NewBambu()
	}
}

// conversionOptions resolves scheduling options with flag > config > default
// precedence
func conversionOptions(cmd *cobra.Command) converter.Options {
	opts := converter.DefaultOptions()

	if viper.IsSet("polyphony") {
		opts.MaxPolyphony = viper.GetInt("polyphony")
	}
	if viper.IsSet("min_note_ms") {
		opts.MinNoteMs = viper.GetInt("min_note_ms")
	}
	if viper.IsSet("quantize_ms") {
		opts.QuantizeMs = viper.GetInt("quantize_ms")
	}
	if viper.IsSet("tempo_scale") {
		opts.TempoScale = viper.GetFloat64("tempo_scale")
	}

	flags := cmd.Root().PersistentFlags()
	if flags.Changed("polyphony") {
		opts.MaxPolyphony, _ = flags.GetInt("polyphony")
	}
	if flags.Changed("min-note-ms") {
		opts.MinNoteMs, _ = flags.GetInt("min-note-ms")
	}
	if flags.Changed("quantize-ms") {
		opts.QuantizeMs, _ = flags.GetInt("quantize-ms")
	}
	if flags.Changed("tempo-scale") {
		opts.TempoScale, _ = flags.GetFloat64("tempo-scale")
	}

	return opts
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	conv := converter.NewWithOptions(getPrinter(), conversionOptions(cmd))

	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	if err := conv.ConvertFile(input, outputFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runMIDIToGCode(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".gcode")

	conv := converter.NewWithOptions(getPrinter(), conversionOptions(cmd))
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	result, err := conv.MIDIToGCode(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}

	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runGCodeToMIDI(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".mid")

	conv := converter.NewWithOptions(getPrinter(), conversionOptions(cmd))
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	result, err := conv.GCodeToMIDI(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}

	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".wav")

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	printer := getPrinter()
	opts := conversionOptions(cmd)

	format := converter.DetectFormat(input)
	if format == converter.FormatUnknown {
		format = converter.DetectFormatFromContent(data)
	}

	var tones []converter.Tone
	switch format {
	case converter.FormatGCode:
		tones, err = printer.ParseGCode(data)
	case converter.FormatMIDI:
		var song *converter.Song
		song, err = converter.NewMIDIConverter().ParseMIDI(data)
		if err == nil {
			tones = converter.Schedule(song, opts)
		}
	default:
		return fmt.Errorf("unrecognized input format: %s", input)
	}
	if err != nil {
		return err
	}

	wav := preview.Render(tones)
	if err := os.WriteFile(output, wav, 0644); err != nil {
		return err
	}

	fmt.Printf("Rendered %s -> %s\n", input, output)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	input := args[0]

	conv := converter.NewWithOptions(getPrinter(), conversionOptions(cmd))
	song, err := conv.ParseFile(input)
	if err != nil {
		return err
	}

	low, high := uint8(127), uint8(0)
	for _, n := range song.Notes {
		if n.Note < low {
			low = n.Note
		}
		if n.Note > high {
			high = n.Note
		}
	}

	fmt.Printf("File:     %s\n", input)
	fmt.Printf("Notes:    %d\n", len(song.Notes))
	fmt.Printf("Duration: %.2fs\n", song.End())
	fmt.Printf("Tempo:    %.1f BPM\n", song.Tempo)
	if len(song.Notes) > 0 {
		fmt.Printf("Range:    %d - %d (MIDI note numbers)\n", low, high)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(conversionOptions(cmd))
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.StartServer(serverPort)
}
