package base

import (
	"bytes"

	cbor "github.com/fxamacker/cbor/v2"
)

var cborEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// EncodeCBOR canonically encodes v, matching the deterministic
// serialization the spec requires for anything that ends up inside an
// encrypted header block (§4.3).
func EncodeCBOR(v interface{}) (*bytes.Buffer, error) {
	data, err := cborEncMode.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(data), nil
}

// DecodeCBOR decodes data into v.
func DecodeCBOR(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
