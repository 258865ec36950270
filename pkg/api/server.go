// Package api provides the REST API server for midi2gcode
package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/soundforge/midi2gcode/pkg/converter"
	"github.com/soundforge/midi2gcode/pkg/converter/printers"
	"github.com/soundforge/midi2gcode/pkg/preview"
)

// @title MIDI2GCode API
// @version 1.0
// @description API for converting MIDI files to Bambu Lab M1006 buzzer G-code
// @host localhost:8080
// @BasePath /api/v1

// StartServer starts the API server on the specified port
func StartServer(port int) error {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/convert/midi2gcode", handleMIDIToGCode)
		v1.POST("/convert/gcode2midi", handleGCodeToMIDI)
		v1.POST("/preview", handlePreview)
		v1.GET("/formats", listFormats)
		v1.GET("/printers", listPrinters)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r.Run(fmt.Sprintf(":%d", port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midi2gcode",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns a list of supported file formats and conversions
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{"midi", "gcode"},
		"conversions": converter.GetSupportedConversions(),
	})
}

// listPrinters godoc
// @Summary List supported printers
// @Description Returns a list of supported printer targets
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]map[string]string
// @Router /api/v1/printers [get]
func listPrinters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"printers": []map[string]string{
			{"id": "bambu", "name": "Bambu Lab", "description": "X1/P1/A1 series buzzer via M1006"},
		},
	})
}

// handleMIDIToGCode godoc
// @Summary Convert MIDI to G-code
// @Description Upload a MIDI file and receive an M1006 G-code file
// @Tags convert
// @Accept multipart/form-data
// @Produce text/plain
// @Param file formData file true "MIDI file to convert"
// @Param polyphony query int false "Maximum simultaneous voices (default 2)"
// @Param min_note_ms query int false "Minimum tone duration in ms (default 50)"
// @Param quantize_ms query int false "Fixed tone duration in ms (default off)"
// @Param tempo_scale query number false "Playback speed multiplier (default 1.0)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/midi2gcode [post]
func handleMIDIToGCode(c *gin.Context) {
	handleConversion(c, "midi", "gcode")
}

// handleGCodeToMIDI godoc
// @Summary Convert G-code to MIDI
// @Description Upload an M1006 G-code file and receive a MIDI file
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "G-code file to convert"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/gcode2midi [post]
func handleGCodeToMIDI(c *gin.Context) {
	handleConversion(c, "gcode", "midi")
}

// handlePreview godoc
// @Summary Render G-code to WAV
// @Description Upload an M1006 G-code file and receive a WAV preview
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/wav
// @Param file formData file true "G-code file to render"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/preview [post]
func handlePreview(c *gin.Context) {
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	printer := printers.NewBambu()
	tones, err := printer.ParseGCode(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wav := preview.Render(tones)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", replaceExt(filename, ".wav")))
	c.Data(http.StatusOK, "audio/wav", wav)
}

func handleConversion(c *gin.Context, fromFormat, toFormat string) {
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	conv := converter.NewWithOptions(printers.NewBambu(), optionsFromQuery(c))

	var result []byte
	var err error
	var outputExt, contentType string

	switch fromFormat + "2" + toFormat {
	case "midi2gcode":
		result, err = conv.MIDIToGCode(data)
		outputExt = ".gcode"
		contentType = "text/plain; charset=utf-8"
	case "gcode2midi":
		result, err = conv.GCodeToMIDI(data)
		outputExt = ".mid"
		contentType = "audio/midi"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}

	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", replaceExt(filename, outputExt)))
	c.Data(http.StatusOK, contentType, result)
}

func readUpload(c *gin.Context) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, "", false
	}

	return data, header.Filename, true
}

func optionsFromQuery(c *gin.Context) converter.Options {
	opts := converter.DefaultOptions()
	if v, err := strconv.Atoi(c.Query("polyphony")); err == nil && v > 0 {
		opts.MaxPolyphony = v
	}
	if v, err := strconv.Atoi(c.Query("min_note_ms")); err == nil && v > 0 {
		opts.MinNoteMs = v
	}
	if v, err := strconv.Atoi(c.Query("quantize_ms")); err == nil && v > 0 {
		opts.QuantizeMs = v
	}
	if v, err := strconv.ParseFloat(c.Query("tempo_scale"), 64); err == nil && v > 0 {
		opts.TempoScale = v
	}
	return opts
}

func replaceExt(filename, ext string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i] + ext
		}
		if filename[i] == '/' || filename[i] == '\\' {
			break
		}
	}
	if filename == "" {
		return "converted" + ext
	}
	return filename + ext
}
