package export

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"github.com/rotisserie/eris"
	"github.com/zeebo/blake3"

	"github.com/sells-group/mobility-cli/internal/model"
)

// encMode uses Core Deterministic Encoding (RFC 8949 4.2), so equal values always
// produce equal bytes.
var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("export: CBOR encoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR encodes v with the deterministic encoder.
func MarshalCBOR(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "export: encode cbor")
	}
	return data, nil
}

// Fingerprint returns the hex blake3 digest of the deterministic CBOR encoding of ds.
// Two runs with the same seed and configuration have the same fingerprint.
func Fingerprint(ds *model.Dataset) (string, error) {
	data, err := MarshalCBOR(ds)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
