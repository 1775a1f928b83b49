package persistence

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so identical state always
// produces identical snapshot bytes.
var encMode cbor.EncMode

// decMode ignores unknown fields so older snapshots keep loading after a
// field is added.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("persistence: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("persistence: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode writes v to w as one CBOR data item.
func Encode(w io.Writer, v any) error {
	return encMode.NewEncoder(w).Encode(v)
}

// Decode reads one CBOR data item from r into v.
func Decode(r io.Reader, v any) error {
	return decMode.NewDecoder(r).Decode(v)
}

// Marshal encodes v to CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
