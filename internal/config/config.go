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

// Package config holds the engine configuration, loadable from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Cache       CacheConfig       `yaml:"cache"`
	Readahead   ReadaheadConfig   `yaml:"readahead"`
	Writer      WriterConfig      `yaml:"writer"`
	Journal     JournalConfig     `yaml:"journal"`
	Compression CompressionConfig `yaml:"compression"`
}

// CacheConfig configures the node cache.
type CacheConfig struct {
	// Capacity is the maximum number of resident nodes.
	Capacity int `yaml:"capacity"`

	// Policy selects the replacement policy: "arc" or "lru".
	Policy string `yaml:"policy"`

	// AdaptStepLimit caps how far one ghost hit moves the ARC recency
	// target. 0 leaves the classic ratio step unclamped.
	AdaptStepLimit int `yaml:"adapt_step_limit"`
}

// ReadaheadConfig configures the sequential prefetcher.
type ReadaheadConfig struct {
	// WindowFloor is the prefetch window after a reset.
	WindowFloor int `yaml:"window_floor"`

	// WindowCeiling is the maximum prefetch window.
	WindowCeiling int `yaml:"window_ceiling"`

	// StartAfter is the run length at which prefetching begins.
	StartAfter int `yaml:"start_after"`

	// PromoteAfter is the run length at which the window doubles.
	PromoteAfter int `yaml:"promote_after"`
}

// WriterConfig configures write batching.
type WriterConfig struct {
	// BatchCapacity is the number of pending writes that triggers an
	// automatic flush.
	BatchCapacity int `yaml:"batch_capacity"`

	// BufferSize is the buffered I/O layer size for record transfers.
	BufferSize int `yaml:"buffer_size"`
}

// JournalConfig configures the write-ahead journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path overrides the sidecar journal location. Empty means
	// "<image path>.journal".
	Path string `yaml:"path"`

	// MaxPayload bounds a single journal entry payload. 0 uses the
	// record ceiling.
	MaxPayload int `yaml:"max_payload"`
}

// CompressionConfig configures the entropy-gated compression engine.
type CompressionConfig struct {
	// Codec names the active codec: "rle", "lz4" or "zstd".
	Codec string `yaml:"codec"`

	// EntropyThreshold is the distinct-byte ratio above which content is
	// stored uncompressed.
	EntropyThreshold float64 `yaml:"entropy_threshold"`

	// SampleSize bounds how many bytes the entropy estimate reads.
	SampleSize int `yaml:"sample_size"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Capacity: 1024,
			Policy:   "arc",
		},
		Readahead: ReadaheadConfig{
			WindowFloor:   8,
			WindowCeiling: 32,
			StartAfter:    2,
			PromoteAfter:  4,
		},
		Writer: WriterConfig{
			BatchCapacity: 64,
			BufferSize:    256 * 1024,
		},
		Journal: JournalConfig{
			Enabled: false,
		},
		Compression: CompressionConfig{
			Codec:            "rle",
			EntropyThreshold: 0.7,
			SampleSize:       4096,
		},
	}
}

// Load reads a YAML config file, applying defaults for absent fields.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate range-checks every section.
func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity %d must be positive", c.Cache.Capacity)
	}
	switch c.Cache.Policy {
	case "arc", "lru":
	default:
		return fmt.Errorf("cache.policy %q must be arc or lru", c.Cache.Policy)
	}
	if c.Cache.AdaptStepLimit < 0 {
		return fmt.Errorf("cache.adapt_step_limit %d must not be negative", c.Cache.AdaptStepLimit)
	}
	if c.Readahead.WindowFloor <= 0 {
		return fmt.Errorf("readahead.window_floor %d must be positive", c.Readahead.WindowFloor)
	}
	if c.Readahead.WindowCeiling < c.Readahead.WindowFloor {
		return fmt.Errorf("readahead.window_ceiling %d below floor %d",
			c.Readahead.WindowCeiling, c.Readahead.WindowFloor)
	}
	if c.Readahead.StartAfter <= 0 || c.Readahead.PromoteAfter < c.Readahead.StartAfter {
		return fmt.Errorf("readahead run thresholds invalid: start_after=%d promote_after=%d",
			c.Readahead.StartAfter, c.Readahead.PromoteAfter)
	}
	if c.Writer.BatchCapacity <= 0 {
		return fmt.Errorf("writer.batch_capacity %d must be positive", c.Writer.BatchCapacity)
	}
	if c.Writer.BufferSize < 256*1024 {
		return fmt.Errorf("writer.buffer_size %d below 256 KiB minimum", c.Writer.BufferSize)
	}
	if c.Journal.MaxPayload < 0 {
		return fmt.Errorf("journal.max_payload %d must not be negative", c.Journal.MaxPayload)
	}
	if c.Compression.EntropyThreshold <= 0 || c.Compression.EntropyThreshold > 1 {
		return fmt.Errorf("compression.entropy_threshold %v out of range (0, 1]",
			c.Compression.EntropyThreshold)
	}
	if c.Compression.SampleSize <= 0 {
		return fmt.Errorf("compression.sample_size %d must be positive", c.Compression.SampleSize)
	}
	switch c.Compression.Codec {
	case "rle", "lz4", "zstd":
	default:
		return fmt.Errorf("compression.codec %q must be rle, lz4 or zstd", c.Compression.Codec)
	}
	return nil
}
