package receipts

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding: the same receipt always
// produces identical bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("receipts: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("receipts: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeCBOR encodes r in deterministic CBOR.
func EncodeCBOR(r *Receipt) ([]byte, error) {
	b, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("receipts: cbor encode: %w", err)
	}
	return b, nil
}

// DecodeCBOR is the inverse of EncodeCBOR.
func DecodeCBOR(data []byte) (*Receipt, error) {
	var r Receipt
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("receipts: cbor decode: %w", err)
	}
	return &r, nil
}
