package cpu

import (
	"github.com/born-ml/onnxrun/internal/errs"
	"github.com/born-ml/onnxrun/internal/parallel"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// Gemm computes alpha*A'*B' + beta*C where A' and B' are A and B, optionally
// transposed. A and B must be 2-D; C (may be nil) must broadcast to the
// (M, N) result.
func (cpu *CPUBackend) Gemm(a, b, c *tensor.RawTensor, alpha, beta float64, transA, transB bool) (*tensor.RawTensor, error) {
	if err := requireFloat("gemm", a, b); err != nil {
		return nil, err
	}
	if err := requireRank("gemm", "A", a, 2); err != nil {
		return nil, err
	}
	if err := requireRank("gemm", "B", b, 2); err != nil {
		return nil, err
	}

	m, k := a.Shape()[0], a.Shape()[1]
	if transA {
		m, k = k, m
	}
	kB, n := b.Shape()[0], b.Shape()[1]
	if transB {
		kB, n = n, kB
	}
	if k != kB {
		return nil, errs.ShapeMismatchf("gemm: inner dimensions differ: A'=(%d, %d) B'=(%d, %d)", m, k, kB, n)
	}

	outShape := tensor.Shape{m, n}
	var cStrides []int
	if c != nil {
		if err := requireSameType("gemm", a, c); err != nil {
			return nil, err
		}
		bs, _, err := tensor.BroadcastShapes(c.Shape(), outShape)
		if err != nil || !bs.Equal(outShape) {
			return nil, errs.ShapeMismatchf("gemm: C %v does not broadcast to (%d, %d)", c.Shape(), m, n)
		}
		cStrides = tensor.BroadcastStrides(c.Shape(), outShape)
	}

	out, err := newLike(a, outShape)
	if err != nil {
		return nil, err
	}
	switch a.DType() {
	case tensor.Float32:
		gemm(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), biasValues[float32](c), cStrides,
			m, k, n, float32(alpha), float32(beta), transA, transB, cpu.par)
	case tensor.Float64:
		gemm(out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), biasValues[float64](c), cStrides,
			m, k, n, alpha, beta, transA, transB, cpu.par)
	}
	return out, nil
}

func gemm[T tensor.Float](out, a, b, c []T, cStrides []int, m, k, n int, alpha, beta T, transA, transB bool, par parallel.Config) {
	if transA {
		a = transpose(a, k, m)
	}
	if transB {
		b = transpose(b, n, k)
	}
	matmulRows(out, a, b, m, k, n, par)
	parallel.For(m, func(i int) {
		row := out[i*n : (i+1)*n]
		for j := range row {
			v := alpha * row[j]
			if c != nil {
				v += beta * c[i*cStrides[0]+j*cStrides[1]]
			}
			row[j] = v
		}
	}, par)
}

// transpose returns the transpose of the rows x cols matrix src.
func transpose[T tensor.Float](src []T, rows, cols int) []T {
	dst := make([]T, len(src))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return dst
}

// matmulRows computes C[i,j] = sum_k A[i,k] * B[k,j], one row of C per work
// item. The i-k-j loop order keeps the inner loop contiguous.
func matmulRows[T tensor.Float](c, a, b []T, m, k, n int, par parallel.Config) {
	parallel.For(m, func(i int) {
		row := c[i*n : (i+1)*n]
		for j := range row {
			row[j] = 0
		}
		for kIdx := 0; kIdx < k; kIdx++ {
			av := a[i*k+kIdx]
			bRow := b[kIdx*n : (kIdx+1)*n]
			for j, bv := range bRow {
				row[j] += av * bv
			}
		}
	}, par)
}

// MatMul computes the matrix product with NumPy semantics: 2-D operands
// multiply as matrices, leading dims broadcast as batch dims, and 1-D
// operands are promoted to a matrix whose added dim is removed from the
// result.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := requireFloat("matmul", a, b); err != nil {
		return nil, err
	}
	as, bs := a.Shape().Clone(), b.Shape().Clone()
	if as.Rank() == 0 || bs.Rank() == 0 {
		return nil, errs.ShapeMismatchf("matmul: scalar operands are not allowed: %v @ %v", as, bs)
	}
	promotedA := as.Rank() == 1
	if promotedA {
		as = tensor.Shape{1, as[0]}
	}
	promotedB := bs.Rank() == 1
	if promotedB {
		bs = tensor.Shape{bs[0], 1}
	}

	m, k := as[len(as)-2], as[len(as)-1]
	kB, n := bs[len(bs)-2], bs[len(bs)-1]
	if k != kB {
		return nil, errs.ShapeMismatchf("matmul: shape mismatch %v @ %v", a.Shape(), b.Shape())
	}
	batchShape, _, err := tensor.BroadcastShapes(as[:len(as)-2], bs[:len(bs)-2])
	if err != nil {
		return nil, errs.ShapeMismatchf("matmul: batch dims of %v and %v: %v", a.Shape(), b.Shape(), err)
	}

	outShape := append(batchShape.Clone(), m, n)
	out, err := newLike(a, outShape)
	if err != nil {
		return nil, err
	}

	batches := batchShape.NumElements()
	aStrides := tensor.BroadcastStrides(as[:len(as)-2], batchShape)
	bStrides := tensor.BroadcastStrides(bs[:len(bs)-2], batchShape)
	outBatchStrides := batchShape.ComputeStrides()
	offsets := func(batch int) (int, int) {
		ai, bi := 0, 0
		for d, s := range outBatchStrides {
			coord := batch / s
			batch %= s
			ai += coord * aStrides[d]
			bi += coord * bStrides[d]
		}
		return ai * m * k, bi * k * n
	}

	switch a.DType() {
	case tensor.Float32:
		batchedMatMul(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), batches, m, k, n, offsets, cpu.par)
	case tensor.Float64:
		batchedMatMul(out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), batches, m, k, n, offsets, cpu.par)
	}

	final := outShape
	switch {
	case promotedA && promotedB:
		final = batchShape.Clone()
	case promotedA:
		final = append(batchShape.Clone(), n)
	case promotedB:
		final = append(batchShape.Clone(), m)
	}
	if !final.Equal(outShape) {
		return out.Reshaped(final)
	}
	return out, nil
}

func batchedMatMul[T tensor.Float](out, a, b []T, batches, m, k, n int, offsets func(int) (int, int), par parallel.Config) {
	for batch := 0; batch < batches; batch++ {
		aOff, bOff := offsets(batch)
		matmulRows(out[batch*m*n:(batch+1)*m*n], a[aOff:aOff+m*k], b[bOff:bOff+k*n], m, k, n, par)
	}
}
