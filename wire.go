package replica

import "encoding/json"

// wireEnvelope is the JSON-on-the-wire shape of a WireRecord (spec.md
// §6.3). encoding/json base64-encodes the Payload field automatically,
// giving a self-describing, human-inspectable envelope around the opaque
// payload bytes a replica capability writes — mirroring how the teacher's
// internal/net/proto package frames typed envelopes around payload bytes
// for the websocket wire.
type wireEnvelope struct {
	Tag       WireTag `json:"tag"`
	NetworkID uint32  `json:"networkId"`
	Timestamp *int64  `json:"timestamp,omitempty"`
	Payload   []byte  `json:"payload,omitempty"`
}

// EncodeWireRecord renders a WireRecord as its wire-format bytes. The
// format is intentionally redefinable (spec.md §1 Non-goals: no
// byte-compatibility requirement with any prior implementation) but must
// round-trip with itself, which DecodeWireRecord guarantees.
func EncodeWireRecord(record WireRecord) ([]byte, error) {
	env := wireEnvelope{
		Tag:       record.Tag,
		NetworkID: uint32(record.NetworkID),
		Timestamp: record.Timestamp,
		Payload:   record.Payload,
	}
	return json.Marshal(env)
}

// DecodeWireRecord parses bytes produced by EncodeWireRecord back into a
// WireRecord.
func DecodeWireRecord(data []byte) (WireRecord, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return WireRecord{}, err
	}
	return WireRecord{
		Tag:       env.Tag,
		NetworkID: NetworkID(env.NetworkID),
		Timestamp: env.Timestamp,
		Payload:   env.Payload,
	}, nil
}
