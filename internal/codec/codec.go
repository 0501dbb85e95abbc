// Package codec encodes envelopes at rest. Queued messages use
// deterministic CBOR, which is smaller than the JSON wire form and
// stores Data/Signature as raw bytes instead of base64.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"e2e_station/internal/model"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	// Unknown fields are ignored so older stations can drain queues
	// written by newer ones.
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

func EncodeEnvelope(env *model.Envelope) ([]byte, error) {
	data, err := Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s -> %s: %w", env.Sender, env.Receiver, err)
	}
	return data, nil
}

func DecodeEnvelope(data []byte) (*model.Envelope, error) {
	var env model.Envelope
	if err := Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
