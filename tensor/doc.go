// Copyright 2026 Blitz Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense tensor container used by the blitz
// kernels.
//
// # Overview
//
// A Tensor owns one contiguous, row-major buffer of float32, float64 or
// integer scalars together with its shape and a layout tag. Image tensors are
// rank 4 and the tag says how the shape is read:
//   - ChannelMajor: (N, C, H, W), every channel plane contiguous
//   - SpatialMajor: (N, H, W, C), channels interleaved per pixel
//
// Shapes are always stored in physical order. Dims returns the logical
// (N, C, H, W) whatever the tag, and FilterDims does the same for filter
// banks stored (K, C, R, S) or (K, R, S, C).
//
// # Basic Usage
//
//	import "github.com/jackzcai/blitz/tensor"
//
//	func main() {
//	    x := tensor.Zeros[float32](tensor.ChannelMajor.ImageShape(8, 3, 32, 32), tensor.ChannelMajor)
//	    n, c, h, w, _ := x.Dims()
//	    first := x.Sample(0) // storage of image 0, aliasing x
//	    _ = first
//	}
//
// The kernels that consume these tensors live in package backend/cpu.
package tensor
