package moodb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoder writes one value as a single frame.
type Encoder interface {
	Encode(v any) error
}

// Decoder reads one frame into v. It returns [io.EOF] at a clean end of
// stream and an error wrapping [ErrCodec] for truncated or mismatched input.
type Decoder interface {
	Decode(v any) error
}

// Codec frames records for storage. Implementations must be symmetric:
// a stream produced by NewEncoder is readable frame-by-frame by NewDecoder.
type Codec interface {
	// Name identifies the codec in configuration files.
	Name() string
	// Extension is the table file extension, without the dot.
	Extension() string
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
}

// Built-in codecs.
var (
	// JSON stores one JSON value per line (JSONL).
	JSON Codec = jsonCodec{}
	// Msgpack stores self-delimiting msgpack frames.
	Msgpack Codec = msgpackCodec{}
)

// CodecByName resolves a codec by its configuration name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case JSON.Name():
		return JSON, nil
	case Msgpack.Name():
		return Msgpack, nil
	}
	return nil, fmt.Errorf("%w: unknown codec %q", ErrCodec, name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string      { return "json" }
func (jsonCodec) Extension() string { return "jsonl" }

func (jsonCodec) NewEncoder(w io.Writer) Encoder {
	return codecEncoder{json.NewEncoder(w)}
}

func (jsonCodec) NewDecoder(r io.Reader) Decoder {
	return codecDecoder{json.NewDecoder(r)}
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string      { return "msgpack" }
func (msgpackCodec) Extension() string { return "mpk" }

func (msgpackCodec) NewEncoder(w io.Writer) Encoder {
	return codecEncoder{msgpack.NewEncoder(w)}
}

func (msgpackCodec) NewDecoder(r io.Reader) Decoder {
	return codecDecoder{msgpack.NewDecoder(r)}
}

// codecEncoder normalizes encode failures to ErrCodec.
type codecEncoder struct {
	enc Encoder
}

func (e codecEncoder) Encode(v any) error {
	if err := e.enc.Encode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrCodec, err)
	}
	return nil
}

// codecDecoder normalizes decode failures to ErrCodec, keeping io.EOF
// distinct so callers can detect a clean end of stream.
type codecDecoder struct {
	dec Decoder
}

func (d codecDecoder) Decode(v any) error {
	err := d.dec.Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCodec, err)
}
