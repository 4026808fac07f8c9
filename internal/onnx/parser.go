package onnx

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/born-ml/onnxrun/internal/errs"
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO(err, "read model %q", path)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := newParser(data).readModelProto(model); err != nil {
		return nil, errs.Decode(err, "parse model")
	}
	return model, nil
}

// ParseTensor parses a standalone TensorProto, the format of ONNX test data
// files.
func ParseTensor(data []byte) (*TensorProto, error) {
	t := &TensorProto{}
	if err := newParser(data).readTensorProto(t); err != nil {
		return nil, errs.Decode(err, "parse tensor")
	}
	return t, nil
}

// parser implements a minimal protobuf wire format decoder.
//
// Every read is bounds checked: truncated fields, overlong varints, negative
// lengths, unknown wire types and known fields carried with the wrong wire
// type are errors, never silently skipped.
type parser struct {
	data []byte
	pos  int
}

func newParser(data []byte) *parser {
	return &parser{data: data}
}

// Protobuf wire types.
const (
	wireVarint = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	wire64Bit  = 1 // fixed64, sfixed64, double
	wireBytes  = 2 // string, bytes, embedded messages, packed repeated fields
	wire32Bit  = 5 // fixed32, sfixed32, float
)

var errTruncated = errors.New("unexpected end of data")

// fields walks the message, calling visit for every field. visit must consume
// the field's payload.
func (p *parser) fields(visit func(field, wire int) error) error {
	for p.pos < len(p.data) {
		start := p.pos
		field, wire, err := p.readTag()
		if err != nil {
			return errors.Wrapf(err, "tag at offset %d", start)
		}
		if err := visit(field, wire); err != nil {
			return errors.Wrapf(err, "field %d at offset %d", field, start)
		}
	}
	return nil
}

// readModelProto reads ModelProto message.
func (p *parser) readModelProto(m *ModelProto) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // ir_version
			m.IRVersion, err = p.varintField(wire)
		case 2: // producer_name
			m.ProducerName, err = p.stringField(wire)
		case 3: // producer_version
			m.ProducerVersion, err = p.stringField(wire)
		case 4: // domain
			m.Domain, err = p.stringField(wire)
		case 5: // model_version
			m.ModelVersion, err = p.varintField(wire)
		case 6: // doc_string
			m.DocString, err = p.stringField(wire)
		case 7: // graph
			m.Graph = &GraphProto{}
			err = p.messageField(wire, func(sub *parser) error { return sub.readGraphProto(m.Graph) })
		case 8: // opset_import
			var opset OperatorSetID
			err = p.messageField(wire, func(sub *parser) error { return sub.readOperatorSetID(&opset) })
			m.OpsetImport = append(m.OpsetImport, opset)
		case 14: // metadata_props
			var entry StringStringEntry
			err = p.messageField(wire, func(sub *parser) error { return sub.readStringStringEntry(&entry) })
			m.MetadataProps = append(m.MetadataProps, entry)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readGraphProto reads GraphProto message.
func (p *parser) readGraphProto(m *GraphProto) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // node
			var node NodeProto
			err = p.messageField(wire, func(sub *parser) error { return sub.readNodeProto(&node) })
			m.Nodes = append(m.Nodes, node)
		case 2: // name
			m.Name, err = p.stringField(wire)
		case 5: // initializer
			var t TensorProto
			err = p.messageField(wire, func(sub *parser) error { return sub.readTensorProto(&t) })
			m.Initializers = append(m.Initializers, t)
		case 10: // doc_string
			m.DocString, err = p.stringField(wire)
		case 11, 12, 13: // input, output, value_info
			var vi ValueInfoProto
			err = p.messageField(wire, func(sub *parser) error { return sub.readValueInfoProto(&vi) })
			switch field {
			case 11:
				m.Inputs = append(m.Inputs, vi)
			case 12:
				m.Outputs = append(m.Outputs, vi)
			default:
				m.ValueInfo = append(m.ValueInfo, vi)
			}
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readNodeProto reads NodeProto message.
func (p *parser) readNodeProto(m *NodeProto) error {
	return p.fields(func(field, wire int) (err error) {
		var s string
		switch field {
		case 1: // input
			s, err = p.stringField(wire)
			m.Inputs = append(m.Inputs, s)
		case 2: // output
			s, err = p.stringField(wire)
			m.Outputs = append(m.Outputs, s)
		case 3: // name
			m.Name, err = p.stringField(wire)
		case 4: // op_type
			m.OpType, err = p.stringField(wire)
		case 5: // attribute
			var attr AttributeProto
			err = p.messageField(wire, func(sub *parser) error { return sub.readAttributeProto(&attr) })
			m.Attributes = append(m.Attributes, attr)
		case 6: // doc_string
			m.DocString, err = p.stringField(wire)
		case 7: // domain
			m.Domain, err = p.stringField(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readTensorProto reads TensorProto message.
func (p *parser) readTensorProto(m *TensorProto) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // dims
			err = p.repeatedVarint(wire, func(v uint64) { m.Dims = append(m.Dims, int64(v)) }) //nolint:gosec // two's complement
		case 2: // data_type
			m.DataType, err = p.int32Field(wire)
		case 3: // segment
			m.Segment = &TensorSegment{}
			err = p.messageField(wire, func(sub *parser) error { return sub.readSegment(m.Segment) })
		case 4: // float_data
			err = p.repeatedFixed32(wire, func(v uint32) { m.FloatData = append(m.FloatData, math.Float32frombits(v)) })
		case 5: // int32_data
			err = p.repeatedVarint(wire, func(v uint64) { m.Int32Data = append(m.Int32Data, int32(v)) }) //nolint:gosec // two's complement
		case 6: // string_data
			var b []byte
			b, err = p.bytesField(wire)
			m.StringData = append(m.StringData, b)
		case 7: // int64_data
			err = p.repeatedVarint(wire, func(v uint64) { m.Int64Data = append(m.Int64Data, int64(v)) }) //nolint:gosec // two's complement
		case 8: // name
			m.Name, err = p.stringField(wire)
		case 9: // raw_data
			m.RawData, err = p.bytesField(wire)
		case 10: // double_data
			err = p.repeatedFixed64(wire, func(v uint64) { m.DoubleData = append(m.DoubleData, math.Float64frombits(v)) })
		case 11: // uint64_data
			err = p.repeatedVarint(wire, func(v uint64) { m.Uint64Data = append(m.Uint64Data, v) })
		case 12: // doc_string
			m.DocString, err = p.stringField(wire)
		case 13: // external_data
			var entry StringStringEntry
			err = p.messageField(wire, func(sub *parser) error { return sub.readStringStringEntry(&entry) })
			m.ExternalData = append(m.ExternalData, entry)
		case 14: // data_location
			m.DataLocation, err = p.int32Field(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

func (p *parser) readSegment(m *TensorSegment) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1:
			m.Begin, err = p.varintField(wire)
		case 2:
			m.End, err = p.varintField(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readValueInfoProto reads ValueInfoProto message.
func (p *parser) readValueInfoProto(m *ValueInfoProto) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // name
			m.Name, err = p.stringField(wire)
		case 2: // type
			m.Type = &TypeProto{}
			err = p.messageField(wire, func(sub *parser) error { return sub.readTypeProto(m.Type) })
		case 3: // doc_string
			m.DocString, err = p.stringField(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readTypeProto reads TypeProto message.
func (p *parser) readTypeProto(m *TypeProto) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // tensor_type
			m.TensorType = &TensorTypeProto{}
			err = p.messageField(wire, func(sub *parser) error { return sub.readTensorTypeProto(m.TensorType) })
		case 6: // denotation
			m.Denotation, err = p.stringField(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readTensorTypeProto reads TensorTypeProto message.
func (p *parser) readTensorTypeProto(m *TensorTypeProto) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // elem_type
			m.ElemType, err = p.int32Field(wire)
		case 2: // shape
			m.Shape = &TensorShapeProto{}
			err = p.messageField(wire, func(sub *parser) error { return sub.readTensorShapeProto(m.Shape) })
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readTensorShapeProto reads TensorShapeProto message.
func (p *parser) readTensorShapeProto(m *TensorShapeProto) error {
	return p.fields(func(field, wire int) (err error) {
		if field != 1 {
			return p.skipField(wire)
		}
		var dim DimensionProto
		err = p.messageField(wire, func(sub *parser) error { return sub.readDimensionProto(&dim) })
		m.Dims = append(m.Dims, dim)
		return err
	})
}

// readDimensionProto reads DimensionProto message.
func (p *parser) readDimensionProto(m *DimensionProto) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // dim_value
			m.DimValue, err = p.varintField(wire)
		case 2: // dim_param
			m.DimParam, err = p.stringField(wire)
		case 3: // denotation
			m.Denotation, err = p.stringField(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readAttributeProto reads AttributeProto message.
func (p *parser) readAttributeProto(m *AttributeProto) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // name
			m.Name, err = p.stringField(wire)
		case 2: // f
			var bits uint32
			bits, err = p.fixed32Field(wire)
			m.F = math.Float32frombits(bits)
		case 3: // i
			m.I, err = p.varintField(wire)
		case 4: // s
			m.S, err = p.bytesField(wire)
		case 5: // t
			m.T = &TensorProto{}
			err = p.messageField(wire, func(sub *parser) error { return sub.readTensorProto(m.T) })
		case 6: // g
			m.G = &GraphProto{}
			err = p.messageField(wire, func(sub *parser) error { return sub.readGraphProto(m.G) })
		case 7: // floats
			err = p.repeatedFixed32(wire, func(v uint32) { m.Floats = append(m.Floats, math.Float32frombits(v)) })
		case 8: // ints
			err = p.repeatedVarint(wire, func(v uint64) { m.Ints = append(m.Ints, int64(v)) }) //nolint:gosec // two's complement
		case 9: // strings
			var b []byte
			b, err = p.bytesField(wire)
			m.Strings = append(m.Strings, b)
		case 10: // tensors
			var t TensorProto
			err = p.messageField(wire, func(sub *parser) error { return sub.readTensorProto(&t) })
			m.Tensors = append(m.Tensors, t)
		case 11: // graphs
			var g GraphProto
			err = p.messageField(wire, func(sub *parser) error { return sub.readGraphProto(&g) })
			m.Graphs = append(m.Graphs, g)
		case 13: // doc_string
			m.DocString, err = p.stringField(wire)
		case 20: // type
			m.Type, err = p.int32Field(wire)
		case 21: // ref_attr_name
			m.RefAttrName, err = p.stringField(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readOperatorSetID reads OperatorSetID message.
func (p *parser) readOperatorSetID(m *OperatorSetID) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // domain
			m.Domain, err = p.stringField(wire)
		case 2: // version
			m.Version, err = p.varintField(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// readStringStringEntry reads StringStringEntry message.
func (p *parser) readStringStringEntry(m *StringStringEntry) error {
	return p.fields(func(field, wire int) (err error) {
		switch field {
		case 1: // key
			m.Key, err = p.stringField(wire)
		case 2: // value
			m.Value, err = p.stringField(wire)
		default:
			err = p.skipField(wire)
		}
		return err
	})
}

// Typed field readers. Each checks the wire type first.

func expectWire(got, want int) error {
	if got != want {
		return errors.Errorf("wire type %d, expected %d", got, want)
	}
	return nil
}

func (p *parser) varintField(wire int) (int64, error) {
	if err := expectWire(wire, wireVarint); err != nil {
		return 0, err
	}
	v, err := p.readVarint()
	return int64(v), err //nolint:gosec // G115: protobuf int64 is two's complement.
}

func (p *parser) int32Field(wire int) (int32, error) {
	v, err := p.varintField(wire)
	return int32(v), err //nolint:gosec // G115: protobuf int32 is sign-extended to 64 bits.
}

func (p *parser) bytesField(wire int) ([]byte, error) {
	if err := expectWire(wire, wireBytes); err != nil {
		return nil, err
	}
	return p.readBytes()
}

func (p *parser) stringField(wire int) (string, error) {
	b, err := p.bytesField(wire)
	return string(b), err
}

func (p *parser) fixed32Field(wire int) (uint32, error) {
	if err := expectWire(wire, wire32Bit); err != nil {
		return 0, err
	}
	return p.readFixed32()
}

func (p *parser) messageField(wire int, read func(sub *parser) error) error {
	data, err := p.bytesField(wire)
	if err != nil {
		return err
	}
	return read(newParser(data))
}

// repeatedVarint accepts both packed (length-delimited) and unpacked
// encodings of a repeated varint field.
func (p *parser) repeatedVarint(wire int, add func(uint64)) error {
	switch wire {
	case wireVarint:
		v, err := p.readVarint()
		if err != nil {
			return err
		}
		add(v)
		return nil
	case wireBytes:
		data, err := p.readBytes()
		if err != nil {
			return err
		}
		sub := newParser(data)
		for sub.pos < len(sub.data) {
			v, err := sub.readVarint()
			if err != nil {
				return errors.Wrap(err, "packed varint")
			}
			add(v)
		}
		return nil
	default:
		return errors.Errorf("wire type %d for repeated varint", wire)
	}
}

func (p *parser) repeatedFixed32(wire int, add func(uint32)) error {
	switch wire {
	case wire32Bit:
		v, err := p.readFixed32()
		if err != nil {
			return err
		}
		add(v)
		return nil
	case wireBytes:
		data, err := p.readBytes()
		if err != nil {
			return err
		}
		if len(data)%4 != 0 {
			return errors.Errorf("packed fixed32 length %d is not a multiple of 4", len(data))
		}
		for i := 0; i < len(data); i += 4 {
			add(binary.LittleEndian.Uint32(data[i:]))
		}
		return nil
	default:
		return errors.Errorf("wire type %d for repeated fixed32", wire)
	}
}

func (p *parser) repeatedFixed64(wire int, add func(uint64)) error {
	switch wire {
	case wire64Bit:
		v, err := p.readFixed64()
		if err != nil {
			return err
		}
		add(v)
		return nil
	case wireBytes:
		data, err := p.readBytes()
		if err != nil {
			return err
		}
		if len(data)%8 != 0 {
			return errors.Errorf("packed fixed64 length %d is not a multiple of 8", len(data))
		}
		for i := 0; i < len(data); i += 8 {
			add(binary.LittleEndian.Uint64(data[i:]))
		}
		return nil
	default:
		return errors.Errorf("wire type %d for repeated fixed64", wire)
	}
}

// Primitive readers.

// readTag reads a protobuf field tag.
func (p *parser) readTag() (fieldNum, wireType int, err error) {
	tag, err := p.readVarint()
	if err != nil {
		return 0, 0, err
	}
	fieldNum = int(tag >> 3) //nolint:gosec // bounded by the check below
	wireType = int(tag & 0x7)
	if fieldNum <= 0 || tag>>3 > math.MaxInt32 {
		return 0, 0, errors.Errorf("invalid field number %d", tag>>3)
	}
	return fieldNum, wireType, nil
}

// readVarint reads a base-128 varint of at most 10 bytes.
func (p *parser) readVarint() (uint64, error) {
	var result uint64
	for i := 0; i < binary.MaxVarintLen64; i++ {
		if p.pos >= len(p.data) {
			return 0, errTruncated
		}
		b := p.data[p.pos]
		p.pos++
		if i == binary.MaxVarintLen64-1 && b > 1 {
			return 0, errors.New("varint overflows 64 bits")
		}
		result |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, errors.New("varint overflows 64 bits")
}

// readBytes reads a length-delimited byte slice. The result aliases the
// input buffer.
func (p *parser) readBytes() ([]byte, error) {
	length, err := p.readVarint()
	if err != nil {
		return nil, err
	}
	if int64(length) < 0 { //nolint:gosec // detects lengths with the sign bit set
		return nil, errors.Errorf("negative length %d", int64(length)) //nolint:gosec // reported as signed
	}
	if length > uint64(len(p.data)-p.pos) {
		return nil, errors.Wrapf(errTruncated, "length %d exceeds remaining %d bytes", length, len(p.data)-p.pos)
	}
	end := p.pos + int(length) //nolint:gosec // bounded above
	result := p.data[p.pos:end:end]
	p.pos = end
	return result, nil
}

func (p *parser) readFixed32() (uint32, error) {
	if len(p.data)-p.pos < 4 {
		return 0, errTruncated
	}
	v := binary.LittleEndian.Uint32(p.data[p.pos:])
	p.pos += 4
	return v, nil
}

func (p *parser) readFixed64() (uint64, error) {
	if len(p.data)-p.pos < 8 {
		return 0, errTruncated
	}
	v := binary.LittleEndian.Uint64(p.data[p.pos:])
	p.pos += 8
	return v, nil
}

// skipField skips a field based on wire type.
func (p *parser) skipField(wireType int) error {
	var err error
	switch wireType {
	case wireVarint:
		_, err = p.readVarint()
	case wire64Bit:
		_, err = p.readFixed64()
	case wireBytes:
		_, err = p.readBytes()
	case wire32Bit:
		_, err = p.readFixed32()
	default:
		err = errors.Errorf("unknown wire type: %d", wireType)
	}
	return err
}
