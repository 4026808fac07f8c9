// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the tensor type consumed and produced by the onnxrun
// runtime.
//
// A RawTensor is a dense, row-major buffer with a shape and an element type.
// Model inputs are built with FromValues and results are read back with the
// typed accessors:
//
//	x, err := tensor.FromValues(tensor.Shape{1, 3}, []float32{1, 2, 3})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	y, err := exec.Run(model, x)
//	fmt.Println(y.Shape(), y.AsFloat32())
//
// # Supported Data Types
//
// float32, float64, float16 (raw bits), int8, int16, int32, int64, uint8,
// uint16, uint32, uint64 and bool. Kernels compute in float32 and float64;
// the other types flow through the shape operators and initializers.
package tensor
