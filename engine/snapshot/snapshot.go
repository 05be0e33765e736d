package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/tiff"
)

// Encode reads tex back from device and writes it to w as a Deflate-compressed TIFF.
//
// Parameters:
//   - w: the destination writer
//   - device: the device owning tex (must support readback)
//   - tex: the texture to encode
//
// Returns:
//   - error: if readback, conversion or encoding fails
func Encode(w io.Writer, device gpu.Device, tex gpu.Texture) error {
	data, err := device.ReadTexture(tex)
	if err != nil {
		return fmt.Errorf("snapshot: read %q: %w", tex.Label(), err)
	}
	size := tex.Size()
	img, err := gpu.DecodeImage(tex.Format(), size.Width, size.Height, data)
	if err != nil {
		return fmt.Errorf("snapshot: decode %q: %w", tex.Label(), err)
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Save writes tex to the TIFF file at path, replacing any existing file.
//
// Parameters:
//   - path: the file to write
//   - device: the device owning tex (must support readback)
//   - tex: the texture to save
//
// Returns:
//   - error: if the file cannot be written or the texture cannot be encoded
func Save(path string, device gpu.Device, tex gpu.Texture) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := Encode(bw, device, tex); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	log.WithFields(log.Fields{
		"component": "snapshot",
		"path":      path,
		"texture":   tex.Label(),
	}).Info("snapshot saved")
	return file.Close()
}
