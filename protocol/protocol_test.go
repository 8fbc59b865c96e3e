package protocol

import (
	"bytes"
	"testing"

	"github.com/go-test/deep"
)

func testType() *Type {
	return NewType("my_type",
		Field{"some_val", Gauge},
		Field{"some_other_val", Derive},
	)
}

// golden bytes lifted from the original implementation's protocol test,
// confirming field order and endianness.
var goldenValuesBlock = []byte{
	0x00, 0x06, // TYPE_VALUES
	0x00, 0x18, // part length
	0x00, 0x02, // number of values
	0x01, 0x02, // dstype codes GAUGE, DERIVE
	0xc9, 0x76, 0xbe, 0x9f, 0x1a, 0xcf, 0x39, 0x40, // 25.809 (little-endian float64)
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0xc2, // 450 (big-endian int64)
}

func TestEncodeValuesMatchesGoldenBytes(t *testing.T) {
	typ := testType()
	enc := NewEncoder(typ)
	out, err := enc.Encode(&Values{
		Host:           "somehost",
		Time:           1517607042,
		Plugin:         "someplugin",
		PluginInstance: "someplugininstance",
		Type:           "my_type",
		TypeInstance:   "sometypeinstance",
		Interval:       10,
		Values:         []float64{25.809, 450},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tail := out[len(out)-len(goldenValuesBlock):]
	if diff := deep.Equal(tail, goldenValuesBlock); diff != nil {
		t.Errorf("values block mismatch: %v", diff)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	typ := testType()
	enc := NewEncoder(typ)
	dec := NewDecoder(typ)

	in := &Values{
		Host:           "somehost",
		Time:           1517607042,
		Plugin:         "someplugin",
		PluginInstance: "someplugininstance",
		Type:           "my_type",
		TypeInstance:   "sometypeinstance",
		Interval:       10,
		Values:         []float64{25.809, 450},
	}
	wire, err := enc.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := dec.Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := deep.Equal(in, out); diff != nil {
		t.Errorf("round trip mismatch: %v", diff)
	}
}

func TestDecodeUnknownTypeRejected(t *testing.T) {
	typ := testType()
	enc := NewEncoder(typ)
	wire, err := enc.Encode(&Values{
		Host: "h", Plugin: "p", PluginInstance: "pi",
		Type: "my_type", TypeInstance: "ti", Time: 1,
		Values: []float64{1, 2},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec := NewDecoder() // knows no types
	if _, err := dec.Decode(wire); err != ErrUnknownType {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestEncodeUnknownTypeRejected(t *testing.T) {
	enc := NewEncoder()
	_, err := enc.Encode(&Values{Type: "nope"})
	if err != ErrUnknownType {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeTruncatedPacket(t *testing.T) {
	dec := NewDecoder(testType())
	if _, err := dec.Decode([]byte{0x00, 0x00, 0x00}); err != ErrTruncated {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

// TestDecodeMissingIntervalDefaults builds a packet by hand, omitting the
// INTERVAL part entirely, and confirms Decode fills in DefaultInterval the
// same way Encode does when asked to encode a zero-Interval Values.
func TestDecodeMissingIntervalDefaults(t *testing.T) {
	typ := testType()

	var buf bytes.Buffer
	packString(&buf, partHost, "somehost")
	packLong(&buf, partTime, 1517607042)
	packString(&buf, partPlugin, "someplugin")
	packString(&buf, partPluginInstance, "someplugininstance")
	packString(&buf, partType, "my_type")
	packString(&buf, partTypeInstance, "sometypeinstance")
	if err := typ.encodeValues(&buf, []float64{25.809, 450}); err != nil {
		t.Fatalf("encodeValues: %v", err)
	}

	dec := NewDecoder(typ)
	out, err := dec.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Interval != DefaultInterval {
		t.Errorf("Interval = %d, want DefaultInterval (%d)", out.Interval, DefaultInterval)
	}
}
