// Package protocol implements the collectd binary network protocol:
// a tagged-part wire format used to ship connection-pool statistics
// from a client process to a collectd-compatible server.
//
// https://collectd.org/wiki/index.php/Binary_protocol
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// ValueKind identifies how a single data-source value is encoded on
// the wire.
type ValueKind uint8

// The four collectd value kinds.
const (
	Counter  ValueKind = 0
	Gauge    ValueKind = 1
	Derive   ValueKind = 2
	Absolute ValueKind = 3
)

// Part type codes, per the collectd network protocol header.
const (
	partHost           uint16 = 0x0000
	partTime           uint16 = 0x0001
	partPlugin         uint16 = 0x0002
	partPluginInstance uint16 = 0x0003
	partType           uint16 = 0x0004
	partTypeInstance   uint16 = 0x0005
	partValues         uint16 = 0x0006
	partInterval       uint16 = 0x0007
)

// DefaultInterval is used for a Values whose Interval is zero.
const DefaultInterval = 10

// MaxPacketSize is the largest datagram the server-side receiver reads,
// matching the collectd default. Encode does not check its output
// against it.
const MaxPacketSize = 1024

// Errors returned while decoding a packet.
var (
	ErrTruncated    = errors.New("protocol: truncated packet")
	ErrUnknownType  = errors.New("protocol: unknown type name")
	ErrMissingField = errors.New("protocol: message missing required part")
	ErrUnknownValue = errors.New("protocol: unknown value kind in VALUES part")
)

// Values mirrors collectd.Values: one sample, addressed by a
// host/plugin/type hierarchy, carrying one or more numeric readings.
type Values struct {
	Host           string
	Time           int64 // unix seconds
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
	Interval       int64
	Values         []float64
}

// Field is a (name, kind) pair from a type's data-source template, as
// declared in collectd's types.db.
type Field struct {
	Name string
	Kind ValueKind
}

// Type describes a collectd type: a name plus the ordered list of
// data sources a VALUES part for that type must supply.
type Type struct {
	Name   string
	Fields []Field

	template []byte // precomputed VALUES header + kind-tag bytes
}

// NewType builds a Type and precomputes its VALUES message template,
// mirroring sqlalchemy_collectd.protocol.Type's constructor.
func NewType(name string, fields ...Field) *Type {
	t := &Type{Name: name, Fields: fields}
	var buf bytes.Buffer
	header := make([]byte, 4)
	binary.BigEndian.PutUint16(header[0:2], partValues)
	binary.BigEndian.PutUint16(header[2:4], uint16(6+9*len(fields)))
	buf.Write(header)
	count := make([]byte, 2)
	binary.BigEndian.PutUint16(count, uint16(len(fields)))
	buf.Write(count)
	for _, f := range fields {
		buf.WriteByte(byte(f.Kind))
	}
	t.template = buf.Bytes()
	return t
}

// FieldIndex returns the position of a named data source within the
// type's template, or -1 if it isn't part of this type.
func (t *Type) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func encodeValue(buf *bytes.Buffer, kind ValueKind, v float64) error {
	switch kind {
	case Counter, Absolute:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v))
		buf.Write(b[:])
	case Derive:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(int64(v)))
		buf.Write(b[:])
	case Gauge:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	default:
		return ErrUnknownValue
	}
	return nil
}

// encodeValues appends the type's precomputed VALUES template and the
// packed data-source values.
func (t *Type) encodeValues(buf *bytes.Buffer, values []float64) error {
	buf.Write(t.template)
	for i, v := range values {
		if i >= len(t.Fields) {
			break
		}
		if err := encodeValue(buf, t.Fields[i].Kind, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeValue(kind ValueKind, b []byte) (float64, error) {
	switch kind {
	case Counter, Absolute:
		return float64(binary.BigEndian.Uint64(b)), nil
	case Derive:
		return float64(int64(binary.BigEndian.Uint64(b))), nil
	case Gauge:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, ErrUnknownValue
	}
}

func packString(buf *bytes.Buffer, code uint16, value string) {
	var h [4]byte
	binary.BigEndian.PutUint16(h[0:2], code)
	binary.BigEndian.PutUint16(h[2:4], uint16(5+len(value)))
	buf.Write(h[:])
	buf.WriteString(value)
	buf.WriteByte(0)
}

func packLong(buf *bytes.Buffer, code uint16, value int64) {
	var h [4]byte
	binary.BigEndian.PutUint16(h[0:2], code)
	binary.BigEndian.PutUint16(h[2:4], 12)
	buf.Write(h[:])
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(value))
	buf.Write(v[:])
}

// Encoder packs Values into collectd wire messages for a fixed set of
// known Types, mirroring sqlalchemy_collectd.protocol.MessageSender.
type Encoder struct {
	types map[string]*Type
}

// NewEncoder builds an Encoder that knows how to encode the given types.
func NewEncoder(types ...*Type) *Encoder {
	m := make(map[string]*Type, len(types))
	for _, t := range types {
		m[t.Name] = t
	}
	return &Encoder{types: m}
}

// Encode serializes v into a single datagram payload.
func (e *Encoder) Encode(v *Values) ([]byte, error) {
	t, ok := e.types[v.Type]
	if !ok {
		return nil, ErrUnknownType
	}
	interval := v.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	var buf bytes.Buffer
	packString(&buf, partHost, v.Host)
	packLong(&buf, partTime, v.Time)
	packString(&buf, partPlugin, v.Plugin)
	packString(&buf, partPluginInstance, v.PluginInstance)
	packString(&buf, partType, t.Name)
	packLong(&buf, partInterval, interval)
	packString(&buf, partTypeInstance, v.TypeInstance)
	if err := t.encodeValues(&buf, v.Values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decoder unpacks collectd wire messages back into Values, mirroring
// sqlalchemy_collectd.protocol.MessageReceiver.
type Decoder struct {
	types map[string]*Type
}

// NewDecoder builds a Decoder that accepts only the given types;
// messages naming any other type are rejected with ErrUnknownType.
func NewDecoder(types ...*Type) *Decoder {
	m := make(map[string]*Type, len(types))
	for _, t := range types {
		m[t.Name] = t
	}
	return &Decoder{types: m}
}

// Decode parses a single datagram payload into Values.
func (d *Decoder) Decode(buf []byte) (*Values, error) {
	var (
		host, plugin, pluginInstance, typ, typeInstance string
		haveHost, havePlugin, havePluginInstance        bool
		haveType, haveTypeInstance, haveTime, haveValues bool
		when, interval                                   int64
		values                                            []float64
	)
	pos := 0
	for pos < len(buf) {
		if pos+4 > len(buf) {
			return nil, ErrTruncated
		}
		code := binary.BigEndian.Uint16(buf[pos : pos+2])
		length := int(binary.BigEndian.Uint16(buf[pos+2 : pos+4]))
		if length < 4 || pos+length > len(buf) {
			return nil, ErrTruncated
		}
		body := buf[pos:pos+length]
		switch code {
		case partHost:
			host = decodeString(body)
			haveHost = true
		case partPlugin:
			plugin = decodeString(body)
			havePlugin = true
		case partPluginInstance:
			pluginInstance = decodeString(body)
			havePluginInstance = true
		case partType:
			typ = decodeString(body)
			haveType = true
		case partTypeInstance:
			typeInstance = decodeString(body)
			haveTypeInstance = true
		case partTime:
			when = int64(binary.BigEndian.Uint64(body[4:12]))
			haveTime = true
		case partInterval:
			interval = int64(binary.BigEndian.Uint64(body[4:12]))
		case partValues:
			v, err := d.decodeValuesPart(typ, body)
			if err != nil {
				return nil, err
			}
			values = v
			haveValues = true
		}
		pos += length
	}
	if !haveHost || !havePlugin || !havePluginInstance || !haveType ||
		!haveTypeInstance || !haveTime || !haveValues {
		return nil, ErrMissingField
	}
	if _, ok := d.types[typ]; !ok {
		return nil, ErrUnknownType
	}
	if interval == 0 {
		interval = DefaultInterval
	}
	return &Values{
		Host:           host,
		Time:           when,
		Plugin:         plugin,
		PluginInstance: pluginInstance,
		Type:           typ,
		TypeInstance:   typeInstance,
		Interval:       interval,
		Values:         values,
	}, nil
}

func decodeString(body []byte) string {
	// body is [header(4)][ascii...][NUL]
	if len(body) <= 5 {
		return ""
	}
	return string(body[4 : len(body)-1])
}

func (d *Decoder) decodeValuesPart(typeName string, body []byte) ([]float64, error) {
	t, ok := d.types[typeName]
	if !ok {
		return nil, ErrUnknownType
	}
	if len(body) < 6 {
		return nil, ErrTruncated
	}
	num := int(binary.BigEndian.Uint16(body[4:6]))
	kindsStart := 6
	valuesStart := kindsStart + num
	if valuesStart > len(body) {
		return nil, ErrTruncated
	}
	result := make([]float64, 0, num)
	pos := valuesStart
	for i := 0; i < num; i++ {
		kind := ValueKind(body[kindsStart+i])
		size := 8
		if pos+size > len(body) {
			return nil, ErrTruncated
		}
		v, err := decodeValue(kind, body[pos:pos+size])
		if err != nil {
			return nil, err
		}
		_ = t // types are validated by name above; per-field kind mismatch
		// is tolerated the way the Python receiver tolerates it (it decodes
		// strictly from the wire-carried kind tags, not the local template).
		result = append(result, v)
		pos += size
	}
	return result, nil
}
