// Copyright 2025 EclipseFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compress

import (
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultEntropyThreshold is the distinct-byte ratio above which
	// content is treated as already compressed or encrypted.
	DefaultEntropyThreshold = 0.7

	// DefaultSampleSize bounds how much of the content the entropy
	// estimate reads.
	DefaultSampleSize = 4096

	// frameHeaderSize is the per-payload overhead: codec id (u8) plus the
	// original length (u32 LE).
	frameHeaderSize = 5
)

// Engine decides whether content is worth compressing and frames the
// result so it can be decompressed without out-of-band state. The frame
// is [codec id u8][original size u32 LE][codec payload].
type Engine struct {
	registry   *Registry
	codec      Codec
	threshold  float64
	sampleSize int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCodec selects the codec by name. Unknown names are rejected by
// NewEngine.
func WithCodec(name string) EngineOption {
	return func(e *Engine) {
		c, err := e.registry.LookupName(name)
		if err != nil {
			// Surfaced by NewEngine via the nil codec check.
			e.codec = nil
			return
		}
		e.codec = c
	}
}

// WithEntropyThreshold overrides the distinct-byte ratio gate.
func WithEntropyThreshold(t float64) EngineOption {
	return func(e *Engine) { e.threshold = t }
}

// WithSampleSize overrides how many bytes the entropy estimate samples.
func WithSampleSize(n int) EngineOption {
	return func(e *Engine) { e.sampleSize = n }
}

// NewEngine returns an engine with the rle codec and default gate unless
// options say otherwise.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		registry:   NewRegistry(),
		threshold:  DefaultEntropyThreshold,
		sampleSize: DefaultSampleSize,
	}
	e.codec, _ = e.registry.Lookup(CodecRLE)
	for _, opt := range opts {
		opt(e)
	}
	if e.codec == nil {
		return nil, errors.New("compress: unknown codec")
	}
	if e.threshold <= 0 || e.threshold > 1 {
		return nil, fmt.Errorf("compress: entropy threshold %v out of range (0, 1]", e.threshold)
	}
	if e.sampleSize <= 0 {
		return nil, fmt.Errorf("compress: sample size %d must be positive", e.sampleSize)
	}
	return e, nil
}

// Codec reports the engine's active codec.
func (e *Engine) Codec() Codec { return e.codec }

// IsCompressible estimates entropy as the ratio of distinct byte values
// in the sample to the values it could have exposed, and admits content
// strictly below the threshold. The denominator is capped at 256, the
// whole byte alphabet; without the cap any sample beyond a few hundred
// bytes would pass the gate, random data included, because distinct
// values top out at 256. Empty content is never compressible.
func (e *Engine) IsCompressible(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > e.sampleSize {
		sample = sample[:e.sampleSize]
	}
	var seen [256]bool
	distinct := 0
	for _, b := range sample {
		if !seen[b] {
			seen[b] = true
			distinct++
		}
	}
	denom := len(sample)
	if denom > 256 {
		denom = 256
	}
	entropy := float64(distinct) / float64(denom)
	return entropy < e.threshold
}

// Compress gates data on entropy and returns the framed compressed form.
// ok is false when the gate rejects the content or the codec could not
// beat the original size; the caller stores the original bytes.
func (e *Engine) Compress(data []byte) (framed []byte, ok bool) {
	if !e.IsCompressible(data) {
		return nil, false
	}
	payload, err := e.codec.Compress(data)
	if err != nil {
		if !errors.Is(err, ErrIncompressible) {
			log.WithError(err).WithField("codec", e.codec.Name()).
				Warn("compression failed, storing uncompressed")
		}
		return nil, false
	}
	if len(payload)+frameHeaderSize >= len(data) {
		return nil, false
	}
	framed = make([]byte, frameHeaderSize, frameHeaderSize+len(payload))
	framed[0] = byte(e.codec.ID())
	binary.LittleEndian.PutUint32(framed[1:5], uint32(len(data)))
	return append(framed, payload...), true
}

// Decompress reverses Compress. The codec is resolved from the frame, so
// an image written with one codec reads back under an engine configured
// with another.
func (e *Engine) Decompress(framed []byte) ([]byte, error) {
	if len(framed) < frameHeaderSize {
		return nil, fmt.Errorf("compressed frame too short: %d bytes", len(framed))
	}
	codec, err := e.registry.Lookup(CodecID(framed[0]))
	if err != nil {
		return nil, err
	}
	originalSize := int(binary.LittleEndian.Uint32(framed[1:5]))
	return codec.Decompress(framed[frameHeaderSize:], originalSize)
}
