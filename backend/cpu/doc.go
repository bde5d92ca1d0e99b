// Copyright 2026 Blitz Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the blitz CPU backend.
//
// # Overview
//
// The backend implements dense 2-D convolution and max pooling for the
// training loop of a convolutional network, plus the elementwise, loss,
// normalization and optimizer kernels around them:
//   - Convolution via patch unpacking (image-to-column) and matrix multiply
//   - Forward, input-gradient and filter-gradient kernels sharing one workspace
//   - NCHW and NHWC images, mixed freely between input and output
//   - Three multiply strategies: gonum BLAS, naive and cache-blocked
//   - float32 and float64
//
// # Basic Usage
//
//	import (
//	    "github.com/jackzcai/blitz/backend/cpu"
//	    "github.com/jackzcai/blitz/tensor"
//	)
//
//	func main() {
//	    b := cpu.New[float32]()
//
//	    ctx, err := cpu.NewConvolutionContext[float32](cpu.ConvolutionConfig{
//	        Batch: 8, Channels: 3, Height: 32, Width: 32,
//	        Filters: 16, FilterHeight: 3, FilterWidth: 3,
//	        PadH: 1, PadW: 1, StrideH: 1, StrideW: 1,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    x := tensor.Zeros[float32](ctx.InputShape(tensor.ChannelMajor), tensor.ChannelMajor)
//	    f := tensor.Zeros[float32](ctx.FilterShape(tensor.ChannelMajor), tensor.ChannelMajor)
//	    y := tensor.Zeros[float32](ctx.OutputShape(tensor.ChannelMajor), tensor.ChannelMajor)
//	    if err := b.Convolution2DForward(x, f, y, ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Concurrency
//
// Every kernel is synchronous. A Backend may be shared between goroutines;
// a ConvolutionContext may not, since its workspace is reused by each call.
//
// # Errors
//
// Kernels validate every shape before writing anything and return errors
// wrapping the sentinels below, to be matched with errors.Is.
package cpu
