package replica

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TestEncodeWireRecordDownloadCompleteGolden pins the exact wire bytes for
// a tag-and-timestamp-only record (no payload), so a change to the field
// order or naming of wireEnvelope is caught even though the round-trip
// tests below would not notice it.
func TestEncodeWireRecordDownloadCompleteGolden(t *testing.T) {
	ts := int64(123456789)
	record := WireRecord{Tag: TagDownloadComplete, NetworkID: 42, Timestamp: &ts}

	got, err := EncodeWireRecord(record)
	if err != nil {
		t.Fatalf("EncodeWireRecord: %v", err)
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, "wire_download_complete", got)
}

func TestWireRecordRoundTrip(t *testing.T) {
	ts := int64(555)
	cases := []WireRecord{
		{Tag: TagConstruct, NetworkID: 7, Timestamp: &ts, Payload: []byte("construction-payload")},
		{Tag: TagDestruct, NetworkID: 7, Payload: []byte("destruction-payload")},
		{Tag: TagScopeChange, NetworkID: 7, Timestamp: &ts, Payload: []byte("scope-payload")},
		{Tag: TagSerialize, NetworkID: 7, Payload: []byte{0x01, 0x02, 0x03}},
		{Tag: TagDownloadComplete, NetworkID: 7, Timestamp: &ts},
	}

	for _, want := range cases {
		encoded, err := EncodeWireRecord(want)
		if err != nil {
			t.Fatalf("EncodeWireRecord(%v): %v", want.Tag, err)
		}
		got, err := DecodeWireRecord(encoded)
		if err != nil {
			t.Fatalf("DecodeWireRecord(%v): %v", want.Tag, err)
		}
		if got.Tag != want.Tag || got.NetworkID != want.NetworkID {
			t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
		}
		if (got.Timestamp == nil) != (want.Timestamp == nil) {
			t.Fatalf("timestamp presence mismatch: want %+v, got %+v", want, got)
		}
		if want.Timestamp != nil && *got.Timestamp != *want.Timestamp {
			t.Fatalf("timestamp mismatch: want %d, got %d", *want.Timestamp, *got.Timestamp)
		}
		if string(got.Payload) != string(want.Payload) {
			t.Fatalf("payload mismatch: want %q, got %q", want.Payload, got.Payload)
		}
	}
}

func TestDecodeWireRecordRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeWireRecord([]byte("not json")); err == nil {
		t.Fatalf("expected an error decoding malformed input")
	}
}
