package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Environment keys read by Load.
const (
	KeyBackend      = "DISPLAY_BACKEND"
	KeyWidth        = "DISPLAY_WIDTH"
	KeyHeight       = "DISPLAY_HEIGHT"
	KeyTextureSize  = "DISPLAY_TEXTURE_SIZE"
	KeyPinnedExtent = "DISPLAY_PINNED_EXTENT"
	KeyFrameLimit   = "DISPLAY_FRAME_LIMIT"
	KeyMaxFrames    = "DISPLAY_MAX_FRAMES"
	KeySnapshot     = "DISPLAY_SNAPSHOT"
	KeyLogLevel     = "DISPLAY_LOG_LEVEL"
	KeyProfile      = "DISPLAY_PROFILE"
)

// ErrInvalidValue is returned when an environment value cannot be parsed.
var ErrInvalidValue = errors.New("config: invalid value")

// Configuration holds the runtime settings of the display application.
type Configuration struct {
	// Backend selects the GPU device implementation.
	Backend gpu.BackendType
	// Width and Height are the window or offscreen surface size in pixels.
	Width, Height uint32
	// TextureSize is the edge length of the square compute texture.
	TextureSize uint32
	// PinnedWidth and PinnedHeight restrict every copy to the top-left
	// sub-rectangle of that size. Zero copies the full extent.
	PinnedWidth, PinnedHeight uint32
	// FrameLimit caps frames per second. Zero is uncapped.
	FrameLimit float64
	// MaxFrames stops the engine after that many frames. Zero runs until quit.
	MaxFrames uint64
	// Snapshot is the TIFF path written with the destination image on exit
	// by the software backend. Empty disables snapshots.
	Snapshot string
	// LogLevel is the logrus level.
	LogLevel log.Level
	// Profile enables the frame profiler.
	Profile bool
}

// Default returns the configuration used when no environment value is set.
//
// Returns:
//   - Configuration: the defaults
func Default() Configuration {
	return Configuration{
		Backend:     gpu.BackendTypeWGPU,
		Width:       1280,
		Height:      720,
		TextureSize: 512,
		LogLevel:    log.InfoLevel,
	}
}

// Load reads the configuration from the environment after loading files into
// it. Variables already set in the environment win over file values. With no
// files, ".env" is loaded when present.
//
// Parameters:
//   - files: env files to load
//
// Returns:
//   - Configuration: the parsed configuration
//   - error: if an explicit file is missing or a value does not parse
func Load(files ...string) (Configuration, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return Configuration{}, fmt.Errorf("config: load env files: %w", err)
		}
	}
	envy.Reload()

	c := Default()
	var err error

	backend := envy.Get(KeyBackend, c.Backend.String())
	b, ok := gpu.ParseBackendType(strings.ToLower(backend))
	if !ok {
		return c, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyBackend, backend)
	}
	c.Backend = b

	if c.Width, err = getUint32(KeyWidth, c.Width); err != nil {
		return c, err
	}
	if c.Height, err = getUint32(KeyHeight, c.Height); err != nil {
		return c, err
	}
	if c.TextureSize, err = getUint32(KeyTextureSize, c.TextureSize); err != nil {
		return c, err
	}
	if c.PinnedWidth, c.PinnedHeight, err = getExtent(KeyPinnedExtent); err != nil {
		return c, err
	}
	if c.FrameLimit, err = getFloat(KeyFrameLimit, c.FrameLimit); err != nil {
		return c, err
	}
	if c.MaxFrames, err = getUint64(KeyMaxFrames, c.MaxFrames); err != nil {
		return c, err
	}
	c.Snapshot = envy.Get(KeySnapshot, c.Snapshot)

	level := envy.Get(KeyLogLevel, c.LogLevel.String())
	if c.LogLevel, err = log.ParseLevel(level); err != nil {
		return c, fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, KeyLogLevel, level, err)
	}
	if c.Profile, err = getBool(KeyProfile, c.Profile); err != nil {
		return c, err
	}
	return c, nil
}

// ConfigureLogging applies the log level and the text formatter to the standard logger.
func (c Configuration) ConfigureLogging() {
	log.SetLevel(c.LogLevel)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// Fields returns the configuration as log fields.
//
// Returns:
//   - log.Fields: the configuration values
func (c Configuration) Fields() log.Fields {
	return log.Fields{
		"backend":      c.Backend,
		"size":         fmt.Sprintf("%dx%d", c.Width, c.Height),
		"texture_size": c.TextureSize,
		"pinned":       fmt.Sprintf("%dx%d", c.PinnedWidth, c.PinnedHeight),
		"frame_limit":  c.FrameLimit,
		"max_frames":   c.MaxFrames,
		"snapshot":     c.Snapshot,
		"profile":      c.Profile,
	}
}

func getUint32(key string, def uint32) (uint32, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return def, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return uint32(v), nil
}

func getUint64(key string, def uint64) (uint64, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}

func getFloat(key string, def float64) (float64, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return def, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}

// getExtent parses "WxH". An empty value yields 0, 0.
func getExtent(key string) (uint32, uint32, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return 0, 0, nil
	}
	ws, hs, ok := strings.Cut(strings.ToLower(raw), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s=%q, want WxH", ErrInvalidValue, key, raw)
	}
	w, errW := strconv.ParseUint(strings.TrimSpace(ws), 10, 32)
	h, errH := strconv.ParseUint(strings.TrimSpace(hs), 10, 32)
	if errW != nil || errH != nil || w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("%w: %s=%q, want WxH", ErrInvalidValue, key, raw)
	}
	return uint32(w), uint32(h), nil
}
