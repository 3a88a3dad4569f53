// Package codec provides the wire encodings the relay and its clients can
// negotiate per connection: JSON text frames or CBOR binary frames.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ErrUnknownCodec is returned by ByName for unsupported codec names
var ErrUnknownCodec = errors.New("unknown codec")

// Codec marshals relay messages to and from frames
type Codec interface {
	// Name is the identifier used in the ?codec= query parameter
	Name() string

	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// Binary reports whether frames must be sent as binary websocket messages
	Binary() bool
}

// Default is the codec used when a client does not ask for one
var Default Codec = JSON{}

// ByName resolves a codec from its name (case-insensitive). An empty name
// selects Default.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return Default, nil
	case "json":
		return JSON{}, nil
	case "cbor":
		return CBOR{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Names lists the supported codec names
func Names() []string {
	return []string{"json", "cbor"}
}

// JSON encodes frames as JSON text
type JSON struct{}

func (JSON) Name() string                       { return "json" }
func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Binary() bool                       { return false }

// encMode uses Core Deterministic Encoding so identical messages produce
// identical frames. Struct fields fall back to their json tags.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
}

// CBOR encodes frames as binary CBOR
type CBOR struct{}

func (CBOR) Name() string                       { return "cbor" }
func (CBOR) Marshal(v any) ([]byte, error)      { return encMode.Marshal(v) }
func (CBOR) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }
func (CBOR) Binary() bool                       { return true }
