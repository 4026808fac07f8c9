package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// Float64s converts any numeric tensor into a freshly allocated []float64,
// for display and comparison. Bool maps to 0/1, Float16 is widened.
func Float64s(r *RawTensor) []float64 {
	out := make([]float64, r.NumElements())
	switch r.dtype {
	case Float32:
		widen(out, Values[float32](r))
	case Float64:
		copy(out, Values[float64](r))
	case Int8:
		widen(out, Values[int8](r))
	case Int16:
		widen(out, Values[int16](r))
	case Int32:
		widen(out, Values[int32](r))
	case Int64:
		widen(out, Values[int64](r))
	case Uint8:
		widen(out, Values[uint8](r))
	case Uint16:
		widen(out, Values[uint16](r))
	case Uint32:
		widen(out, Values[uint32](r))
	case Uint64:
		widen(out, Values[uint64](r))
	case Float16:
		for i, bits := range Values[uint16](r) {
			out[i] = float64(float16.Frombits(bits).Float32())
		}
	case Bool:
		for i, v := range Values[bool](r) {
			if v {
				out[i] = 1
			}
		}
	default:
		panic(fmt.Sprintf("unsupported dtype %s", r.dtype))
	}
	return out
}

type number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64
}

func widen[T number](dst []float64, src []T) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}

// ToFloat32 returns a Float32 copy of a Float16 or Float64 tensor; Float32
// tensors are returned unchanged. Other types fail.
func ToFloat32(r *RawTensor) (*RawTensor, error) {
	switch r.dtype {
	case Float32:
		return r, nil
	case Float16:
		out, err := NewRaw(r.shape, Float32)
		if err != nil {
			return nil, err
		}
		dst := out.AsFloat32()
		for i, bits := range Values[uint16](r) {
			dst[i] = float16.Frombits(bits).Float32()
		}
		return out, nil
	case Float64:
		out, err := NewRaw(r.shape, Float32)
		if err != nil {
			return nil, err
		}
		dst := out.AsFloat32()
		for i, v := range r.AsFloat64() {
			dst[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %s to float32", r.dtype)
	}
}

// Float16FromFloat32 builds a Float16 tensor by rounding each value.
func Float16FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	if shape.NumElements() != len(values) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(values))
	}
	t, err := NewRaw(shape, Float16)
	if err != nil {
		return nil, err
	}
	bits := Values[uint16](t)
	for i, v := range values {
		bits[i] = float16.Fromfloat32(v).Bits()
	}
	return t, nil
}
