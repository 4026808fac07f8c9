package onnx

import (
	"bytes"
	"math"
	"strconv"

	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// DataTypeFromProto maps an ONNX element type to a tensor.DataType.
func DataTypeFromProto(elemType int32) (tensor.DataType, error) {
	switch elemType {
	case TensorProtoFloat:
		return tensor.Float32, nil
	case TensorProtoDouble:
		return tensor.Float64, nil
	case TensorProtoFloat16:
		return tensor.Float16, nil
	case TensorProtoInt8:
		return tensor.Int8, nil
	case TensorProtoInt16:
		return tensor.Int16, nil
	case TensorProtoInt32:
		return tensor.Int32, nil
	case TensorProtoInt64:
		return tensor.Int64, nil
	case TensorProtoUint8:
		return tensor.Uint8, nil
	case TensorProtoUint16:
		return tensor.Uint16, nil
	case TensorProtoUint32:
		return tensor.Uint32, nil
	case TensorProtoUint64:
		return tensor.Uint64, nil
	case TensorProtoBool:
		return tensor.Bool, nil
	default:
		return 0, errs.Decodef("unsupported tensor element type %s", ElemTypeName(elemType))
	}
}

// DataTypeToProto maps a tensor.DataType to its ONNX element type.
func DataTypeToProto(dt tensor.DataType) int32 {
	switch dt {
	case tensor.Float32:
		return TensorProtoFloat
	case tensor.Float64:
		return TensorProtoDouble
	case tensor.Float16:
		return TensorProtoFloat16
	case tensor.Int8:
		return TensorProtoInt8
	case tensor.Int16:
		return TensorProtoInt16
	case tensor.Int32:
		return TensorProtoInt32
	case tensor.Int64:
		return TensorProtoInt64
	case tensor.Uint8:
		return TensorProtoUint8
	case tensor.Uint16:
		return TensorProtoUint16
	case tensor.Uint32:
		return TensorProtoUint32
	case tensor.Uint64:
		return TensorProtoUint64
	case tensor.Bool:
		return TensorProtoBool
	default:
		return TensorProtoUndefined
	}
}

var elemTypeNames = map[int32]string{
	TensorProtoUndefined:  "UNDEFINED",
	TensorProtoFloat:      "FLOAT",
	TensorProtoUint8:      "UINT8",
	TensorProtoInt8:       "INT8",
	TensorProtoUint16:     "UINT16",
	TensorProtoInt16:      "INT16",
	TensorProtoInt32:      "INT32",
	TensorProtoInt64:      "INT64",
	TensorProtoString:     "STRING",
	TensorProtoBool:       "BOOL",
	TensorProtoFloat16:    "FLOAT16",
	TensorProtoDouble:     "DOUBLE",
	TensorProtoUint32:     "UINT32",
	TensorProtoUint64:     "UINT64",
	TensorProtoComplex64:  "COMPLEX64",
	TensorProtoComplex128: "COMPLEX128",
	TensorProtoBfloat16:   "BFLOAT16",
}

// ElemTypeName returns the ONNX name of an element type, e.g. "FLOAT".
func ElemTypeName(elemType int32) string {
	if name, ok := elemTypeNames[elemType]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(elemType)) + ")"
}

// DecodeTensor converts a TensorProto into a RawTensor.
//
// The payload comes from raw_data (little-endian) when present, otherwise
// from the typed repeated field ONNX assigns to the element type. The
// payload size must match the product of dims exactly.
func DecodeTensor(tp *TensorProto) (*tensor.RawTensor, error) {
	dt, err := DataTypeFromProto(tp.DataType)
	if err != nil {
		return nil, errs.Decode(err, "tensor %q", tp.Name)
	}
	if tp.DataLocation == 1 || len(tp.ExternalData) > 0 {
		return nil, errs.Decodef("tensor %q: external data is not supported", tp.Name)
	}
	if tp.Segment != nil {
		return nil, errs.Decodef("tensor %q: segmented tensors are not supported", tp.Name)
	}
	shape, err := shapeFromDims(tp.Dims)
	if err != nil {
		return nil, errs.Decode(err, "tensor %q", tp.Name)
	}
	n := shape.NumElements()

	if len(tp.RawData) > 0 || !hasTypedData(tp) {
		want := n * dt.Size()
		if len(tp.RawData) != want {
			return nil, errs.Decodef("tensor %q: raw_data has %d bytes, shape %v of %s needs %d",
				tp.Name, len(tp.RawData), shape, dt, want)
		}
		if dt == tensor.Bool {
			for i, b := range tp.RawData {
				if b > 1 {
					return nil, errs.Decodef("tensor %q: invalid bool byte %d at %d", tp.Name, b, i)
				}
			}
		}
		t, err := tensor.FromBytes(shape, dt, tp.RawData)
		if err != nil {
			return nil, errs.Decode(err, "tensor %q", tp.Name)
		}
		return t, nil
	}

	t, err := tensor.NewRaw(shape, dt)
	if err != nil {
		return nil, errs.Decode(err, "tensor %q", tp.Name)
	}
	count := func(field string, got int) error {
		if got != n {
			return errs.Decodef("tensor %q: %s has %d values, shape %v needs %d", tp.Name, field, got, shape, n)
		}
		return nil
	}

	switch dt {
	case tensor.Float32:
		if err := count("float_data", len(tp.FloatData)); err != nil {
			return nil, err
		}
		copy(t.AsFloat32(), tp.FloatData)
	case tensor.Float64:
		if err := count("double_data", len(tp.DoubleData)); err != nil {
			return nil, err
		}
		copy(t.AsFloat64(), tp.DoubleData)
	case tensor.Int64:
		if err := count("int64_data", len(tp.Int64Data)); err != nil {
			return nil, err
		}
		copy(t.AsInt64(), tp.Int64Data)
	case tensor.Uint32, tensor.Uint64:
		if err := count("uint64_data", len(tp.Uint64Data)); err != nil {
			return nil, err
		}
		if dt == tensor.Uint64 {
			copy(tensor.Values[uint64](t), tp.Uint64Data)
		} else {
			narrow(tensor.Values[uint32](t), tp.Uint64Data)
		}
	default:
		// INT32, INT16, INT8, UINT16, UINT8, BOOL and FLOAT16 (as bits) share int32_data.
		if err := count("int32_data", len(tp.Int32Data)); err != nil {
			return nil, err
		}
		switch dt {
		case tensor.Int32:
			copy(t.AsInt32(), tp.Int32Data)
		case tensor.Int16:
			narrow(tensor.Values[int16](t), tp.Int32Data)
		case tensor.Int8:
			narrow(tensor.Values[int8](t), tp.Int32Data)
		case tensor.Uint16, tensor.Float16:
			narrow(tensor.Values[uint16](t), tp.Int32Data)
		case tensor.Uint8:
			narrow(tensor.Values[uint8](t), tp.Int32Data)
		case tensor.Bool:
			dst := t.AsBool()
			for i, v := range tp.Int32Data {
				dst[i] = v != 0
			}
		}
	}
	return t, nil
}

func hasTypedData(tp *TensorProto) bool {
	return len(tp.FloatData) > 0 || len(tp.Int32Data) > 0 || len(tp.Int64Data) > 0 ||
		len(tp.DoubleData) > 0 || len(tp.Uint64Data) > 0 || len(tp.StringData) > 0
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func narrow[D, S integer](dst []D, src []S) {
	for i, v := range src {
		dst[i] = D(v)
	}
}

// shapeFromDims validates dims and guards the element count against overflow.
func shapeFromDims(dims []int64) (tensor.Shape, error) {
	shape := make(tensor.Shape, len(dims))
	n := int64(1)
	for i, d := range dims {
		if d < 0 {
			return nil, errs.Decodef("negative dimension %d at index %d", d, i)
		}
		if d > 0 && n > math.MaxInt32/d {
			return nil, errs.Decodef("dims %v exceed the supported element count", dims)
		}
		n *= d
		shape[i] = int(d)
	}
	return shape, nil
}

// EncodeTensor converts a RawTensor into the canonical TensorProto form:
// dims, data_type, name and raw_data.
func EncodeTensor(t *tensor.RawTensor, name string) *TensorProto {
	tp := &TensorProto{
		Name:     name,
		DataType: DataTypeToProto(t.DType()),
	}
	if t.Rank() > 0 {
		tp.Dims = make([]int64, t.Rank())
		for i, d := range t.Shape() {
			tp.Dims[i] = int64(d)
		}
	}
	if t.ByteSize() > 0 {
		tp.RawData = bytes.Clone(t.Data())
	}
	return tp
}
