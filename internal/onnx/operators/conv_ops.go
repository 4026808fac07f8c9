package operators

import (
	"github.com/born-ml/onnxrun/internal/backend/cpu"
	"github.com/born-ml/onnxrun/internal/tensor"
)

// registerConvOps adds convolution and pooling operators to the registry.
func (r *Registry) registerConvOps() {
	r.mustRegister(OpConv, handleConv)
	r.mustRegister(OpMaxPool, handleMaxPool)
	r.mustRegister(OpAveragePool, handleAveragePool)
	r.mustRegister(OpGlobalAveragePool, handleGlobalAveragePool)
	r.mustRegister(OpGlobalMaxPool, handleGlobalMaxPool)
}

// windowAttrs reads the attributes shared by Conv and the pooling operators.
func windowAttrs(node *Node) (cpu.Window, error) {
	var (
		win cpu.Window
		err error
	)
	if win.Kernel, err = node.IntsAsInts("kernel_shape"); err != nil {
		return win, err
	}
	if win.Strides, err = node.IntsAsInts("strides"); err != nil {
		return win, err
	}
	if win.Pads, err = node.IntsAsInts("pads"); err != nil {
		return win, err
	}
	if win.Dilations, err = node.IntsAsInts("dilations"); err != nil {
		return win, err
	}
	if win.AutoPad, err = node.String("auto_pad", cpu.AutoPadNotSet); err != nil {
		return win, err
	}
	ceil, err := node.Int("ceil_mode", 0)
	if err != nil {
		return win, err
	}
	win.CeilMode = ceil != 0
	return win, nil
}

func handleConv(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 2, 3); err != nil {
		return nil, err
	}
	win, err := windowAttrs(node)
	if err != nil {
		return nil, err
	}
	group, err := node.Int("group", 1)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.Conv(inputs[0], inputs[1], optional(inputs, 2), win, int(group)))
}

// handleMaxPool supports the optional Indices output only by omission:
// models that consume it fail with MissingInput downstream.
func handleMaxPool(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	win, err := windowAttrs(node)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.MaxPool(inputs[0], win))
}

func handleAveragePool(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	win, err := windowAttrs(node)
	if err != nil {
		return nil, err
	}
	include, err := node.Int("count_include_pad", 0)
	if err != nil {
		return nil, err
	}
	return single(ctx.Backend.AveragePool(inputs[0], win, include != 0))
}

func handleGlobalAveragePool(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	return single(ctx.Backend.GlobalAveragePool(inputs[0]))
}

func handleGlobalMaxPool(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	return single(ctx.Backend.GlobalMaxPool(inputs[0]))
}
