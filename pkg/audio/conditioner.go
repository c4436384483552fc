// Package audio conditions raw microphone frames before transcription.
//
// Clients send frames as little-endian float32 samples on a [-1, 1] scale,
// interleaved when more than one channel is configured. Conditioning applies
// a noise gate followed by automatic gain control, then clips back to range.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedFrame is returned when a frame's byte length does not divide
// evenly into float32 samples for the configured channel count.
var ErrMalformedFrame = errors.New("audio: malformed frame")

// Default conditioning parameters, matching typical speech capture.
const (
	DefaultNoiseThreshold = 0.01
	DefaultTargetRMS      = 0.2

	bytesPerSample = 4 // float32
)

// Conditioner applies noise gating and automatic gain control to audio frames.
// A Conditioner is stateless per call and safe for concurrent use.
type Conditioner struct {
	channels       int
	noiseThreshold float64
	targetRMS      float64
}

// NewConditioner creates a Conditioner for the given channel layout.
// Threshold and target default when zero.
func NewConditioner(channels int, noiseThreshold, targetRMS float64) (*Conditioner, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("audio: unsupported channel count %d", channels)
	}
	if noiseThreshold == 0 {
		noiseThreshold = DefaultNoiseThreshold
	}
	if targetRMS == 0 {
		targetRMS = DefaultTargetRMS
	}
	return &Conditioner{
		channels:       channels,
		noiseThreshold: noiseThreshold,
		targetRMS:      targetRMS,
	}, nil
}

// Condition decodes a raw frame and returns the conditioned samples.
// Returns ErrMalformedFrame if the buffer does not decode cleanly.
func (c *Conditioner) Condition(frame []byte) ([]float32, error) {
	samples, err := c.Decode(frame)
	if err != nil {
		return nil, err
	}
	c.Process(samples)
	return samples, nil
}

// Decode converts a little-endian float32 byte buffer to samples, validating
// the frame shape against the configured channel count.
func (c *Conditioner) Decode(frame []byte) ([]float32, error) {
	if len(frame) == 0 || len(frame)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of float32 samples", ErrMalformedFrame, len(frame))
	}
	n := len(frame) / bytesPerSample
	if n%c.channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not interleave across %d channels", ErrMalformedFrame, n, c.channels)
	}

	samples := make([]float32, n)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(frame[i*bytesPerSample:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

// Encode converts samples back to the little-endian float32 wire layout.
func Encode(samples []float32) []byte {
	frame := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(frame[i*bytesPerSample:], math.Float32bits(s))
	}
	return frame
}

// Process conditions samples in place: noise gate, then AGC, then clipping.
// The interleaved layout is preserved; gating and gain are applied uniformly
// across channels so the stereo image is not skewed.
func (c *Conditioner) Process(samples []float32) {
	c.gate(samples)
	c.normalize(samples)
}

// gate zeroes any sample whose magnitude falls below the noise threshold.
func (c *Conditioner) gate(samples []float32) {
	threshold := float32(c.noiseThreshold)
	for i, s := range samples {
		if s < threshold && s > -threshold {
			samples[i] = 0
		}
	}
}

// normalize scales the buffer toward the target RMS and clips to [-1, 1].
// A silent buffer is left untouched.
func (c *Conditioner) normalize(samples []float32) {
	rms := RMS(samples)
	if rms == 0 {
		return
	}
	gain := c.targetRMS / rms
	for i, s := range samples {
		v := float64(s) * gain
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		samples[i] = float32(v)
	}
}

// RMS computes the root-mean-square loudness of a sample buffer.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
