package moodb

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCodec(t *testing.T) {
	for _, codec := range []Codec{JSON, Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			t.Run("multi frame round trip", func(t *testing.T) {
				var buf bytes.Buffer
				enc := codec.NewEncoder(&buf)
				want := []account{{Balance: 1.5, Age: 30}, {Balance: -2, Age: 0}, {}}
				for _, v := range want {
					if err := enc.Encode(v); err != nil {
						t.Fatalf("Encode failed: %v", err)
					}
				}

				dec := codec.NewDecoder(&buf)
				for i, w := range want {
					var got account
					if err := dec.Decode(&got); err != nil {
						t.Fatalf("Decode frame %d failed: %v", i, err)
					}
					if got != w {
						t.Errorf("frame %d = %+v, want %+v", i, got, w)
					}
				}
				var extra account
				if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
					t.Errorf("Decode past end = %v, want io.EOF", err)
				}
			})

			t.Run("truncated input", func(t *testing.T) {
				var buf bytes.Buffer
				if err := codec.NewEncoder(&buf).Encode(account{Balance: 1}); err != nil {
					t.Fatalf("Encode failed: %v", err)
				}
				truncated := buf.Bytes()[:buf.Len()-2]

				var got account
				err := codec.NewDecoder(bytes.NewReader(truncated)).Decode(&got)
				if !errors.Is(err, ErrCodec) {
					t.Errorf("Decode() error = %v, want ErrCodec", err)
				}
				if errors.Is(err, io.EOF) {
					t.Errorf("Decode() error = %v, must not look like a clean end of stream", err)
				}
			})

			t.Run("empty stream", func(t *testing.T) {
				var got account
				if err := codec.NewDecoder(strings.NewReader("")).Decode(&got); !errors.Is(err, io.EOF) {
					t.Errorf("Decode() error = %v, want io.EOF", err)
				}
			})
		})
	}

	t.Run("json mismatched input", func(t *testing.T) {
		var got account
		err := JSON.NewDecoder(strings.NewReader("{nope}\n")).Decode(&got)
		if !errors.Is(err, ErrCodec) {
			t.Errorf("Decode() error = %v, want ErrCodec", err)
		}
	})

	t.Run("encode failure", func(t *testing.T) {
		// A channel has no JSON representation.
		err := JSON.NewEncoder(&bytes.Buffer{}).Encode(make(chan int))
		if !errors.Is(err, ErrCodec) {
			t.Errorf("Encode() error = %v, want ErrCodec", err)
		}
	})
}

func TestCodecByName(t *testing.T) {
	t.Run("known", func(t *testing.T) {
		for name, want := range map[string]Codec{"json": JSON, "msgpack": Msgpack} {
			got, err := CodecByName(name)
			if err != nil {
				t.Fatalf("CodecByName(%q) failed: %v", name, err)
			}
			if got != want {
				t.Errorf("CodecByName(%q) = %v, want %v", name, got, want)
			}
		}
	})

	t.Run("unknown", func(t *testing.T) {
		for _, name := range []string{"", "JSON", "cbor"} {
			if _, err := CodecByName(name); !errors.Is(err, ErrCodec) {
				t.Errorf("CodecByName(%q) error = %v, want ErrCodec", name, err)
			}
		}
	})
}
