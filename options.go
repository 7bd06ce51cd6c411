package moodb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultDir is the storage root used when [Options.Dir] is empty, relative
// to the working directory.
const DefaultDir = "moodb"

// Options configures a [Client]. The zero value (or nil) selects the
// defaults: [DefaultDir], the [JSON] codec, table creation enabled, and
// [slog.Default] for logging. The storage root is always explicit per-handle
// state; nothing in this package keeps a process-wide root.
type Options struct {
	// Dir is the storage root directory holding one file per table.
	Dir string

	// CreateIfMissing controls whether the root directory and table file are
	// created when absent. Nil means true. When false, a missing root or
	// table file is an error.
	CreateIfMissing *bool

	// Codec frames records on disk and picks the table file extension.
	Codec Codec

	// Logger receives debug-level operation logs.
	Logger *slog.Logger
}

// resolved returns a copy with all defaults filled in.
func (o *Options) resolved() Options {
	var r Options
	if o != nil {
		r = *o
	}
	if r.Dir == "" {
		r.Dir = DefaultDir
	}
	if r.CreateIfMissing == nil {
		t := true
		r.CreateIfMissing = &t
	}
	if r.Codec == nil {
		r.Codec = JSON
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	return r
}

// fileConfig is the YAML shape read by [LoadOptions].
type fileConfig struct {
	Dir             string `yaml:"dir"`
	Codec           string `yaml:"codec"`
	CreateIfMissing *bool  `yaml:"create_if_missing"`
}

// LoadOptions reads client options from a YAML config file.
//
// Recognized keys: dir, codec (json or msgpack), create_if_missing. Absent
// keys keep their defaults; unknown keys are rejected.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config %s: %w", ErrIO, path, err)
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	opts := &Options{
		Dir:             cfg.Dir,
		CreateIfMissing: cfg.CreateIfMissing,
	}
	if cfg.Codec != "" {
		codec, err := CodecByName(cfg.Codec)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		opts.Codec = codec
	}
	return opts, nil
}
