package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(KeyBackend, "Software")
	t.Setenv(KeyWidth, "800")
	t.Setenv(KeyHeight, "600")
	t.Setenv(KeyTextureSize, "256")
	t.Setenv(KeyPinnedExtent, "300x200")
	t.Setenv(KeyFrameLimit, "30")
	t.Setenv(KeyMaxFrames, "5")
	t.Setenv(KeySnapshot, "out.tiff")
	t.Setenv(KeyLogLevel, "debug")
	t.Setenv(KeyProfile, "true")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Configuration{
		Backend:      gpu.BackendTypeSoftware,
		Width:        800,
		Height:       600,
		TextureSize:  256,
		PinnedWidth:  300,
		PinnedHeight: 200,
		FrameLimit:   30,
		MaxFrames:    5,
		Snapshot:     "out.tiff",
		LogLevel:     log.DebugLevel,
		Profile:      true,
	}, c)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{KeyBackend, "vulkan"},
		{KeyWidth, "wide"},
		{KeyHeight, "0"},
		{KeyPinnedExtent, "300"},
		{KeyPinnedExtent, "0x200"},
		{KeyFrameLimit, "-1"},
		{KeyMaxFrames, "many"},
		{KeyLogLevel, "loud"},
		{KeyProfile, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.env")
	require.NoError(t, os.WriteFile(path, []byte("DISPLAY_TEXTURE_SIZE=128\nDISPLAY_MAX_FRAMES=3\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv(KeyTextureSize)
		os.Unsetenv(KeyMaxFrames)
	})

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), c.TextureSize)
	assert.Equal(t, uint64(3), c.MaxFrames)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
