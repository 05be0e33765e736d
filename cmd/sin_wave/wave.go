package main

import (
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
)

// wave colors, in linear RGBA.
var (
	backgroundColor = [4]float32{1, 0, 0.5, 1}
	waveColor       = [4]float32{0, 1, 1, 1}
)

// wave renders a scrolling sine wave into a square RGBA32Float texel buffer.
// It stands in for the compute pass that would normally fill the source texture.
type wave struct {
	size      uint32
	amplitude float64 // fraction of half the size
	cycles    float64 // periods across the width
	speed     float64 // radians per second
	thickness float64 // half band height in texels
	paused    bool
	data      []byte
}

func newWave(size uint32) *wave {
	return &wave{
		size:      size,
		amplitude: 0.6,
		cycles:    2,
		speed:     2,
		thickness: max(float64(size)/64, 1),
		data:      make([]byte, int(size)*int(size)*16),
	}
}

// render returns the wave at elapsed time t. The returned buffer is reused by the next call.
func (w *wave) render(t time.Duration) []byte {
	n := int(w.size)
	half := float64(w.size) / 2
	phase := t.Seconds() * w.speed

	for x := 0; x < n; x++ {
		center := half + w.amplitude*half*math.Sin(2*math.Pi*w.cycles*float64(x)/float64(n)+phase)
		for y := 0; y < n; y++ {
			k := float32(max(0, 1-math.Abs(float64(y)-center)/w.thickness))
			off := (y*n + x) * 16
			gpu.PutFloat32Pixel(w.data[off:],
				lerp(backgroundColor[0], waveColor[0], k),
				lerp(backgroundColor[1], waveColor[1], k),
				lerp(backgroundColor[2], waveColor[2], k),
				1,
			)
		}
	}
	return w.data
}

func lerp(a, b, k float32) float32 {
	return a + (b-a)*k
}
