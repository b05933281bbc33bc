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

// Package compress is the entropy-gated compression engine. A cheap
// distinct-byte entropy estimate decides whether content is worth
// encoding; a codec registry lets real codecs (lz4, zstd) be swapped in
// without touching callers, with a run-length reference codec always
// available.
package compress

import (
	"errors"
	"fmt"
	"sort"
)

// CodecID identifies a codec in the compressed-content frame. Stored on
// disk (1 byte); changing assignments breaks image compatibility.
type CodecID uint8

const (
	// CodecRLE is the reference run-length codec. Always registered so
	// the compression gate is testable without optional dependencies.
	CodecRLE CodecID = 1

	// CodecLZ4 is LZ4 block compression.
	CodecLZ4 CodecID = 2

	// CodecZstd is zstd at the default level.
	CodecZstd CodecID = 3
)

// Codec is one compression algorithm. Compress returns
// ErrIncompressible when the encoded form would not be smaller;
// Decompress must reproduce exactly originalSize bytes.
type Codec interface {
	ID() CodecID
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, originalSize int) ([]byte, error)
}

// ErrIncompressible is returned by codecs when the encoded output is not
// strictly smaller than the input. The engine stores the original bytes.
var ErrIncompressible = errors.New("data is incompressible")

// Registry maps codec IDs and names to implementations.
type Registry struct {
	byID   map[CodecID]Codec
	byName map[string]Codec
}

// NewRegistry returns a registry with every built-in codec registered.
func NewRegistry() *Registry {
	r := &Registry{
		byID:   make(map[CodecID]Codec),
		byName: make(map[string]Codec),
	}
	r.Register(rleCodec{})
	r.Register(lz4Codec{})
	r.Register(zstdCodec{})
	return r
}

// Register adds or replaces a codec.
func (r *Registry) Register(c Codec) {
	r.byID[c.ID()] = c
	r.byName[c.Name()] = c
}

// Lookup finds a codec by ID.
func (r *Registry) Lookup(id CodecID) (Codec, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown codec id %d", id)
	}
	return c, nil
}

// LookupName finds a codec by name ("rle", "lz4", "zstd").
func (r *Registry) LookupName(name string) (Codec, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}

// Names lists registered codec names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
