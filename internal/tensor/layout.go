package tensor

import (
	"fmt"
	"strings"
)

// Layout is the physical ordering of the axes of a batched image tensor.
//
// The batch axis is always outermost. Tensors of rank other than 4 carry a
// layout tag too; it only matters to kernels that read spatial structure.
type Layout int

// Supported layouts.
const (
	// ChannelMajor stores (N, C, H, W).
	ChannelMajor Layout = iota
	// SpatialMajor stores (N, H, W, C).
	SpatialMajor
)

// String returns the conventional axis-order name.
func (l Layout) String() string {
	switch l {
	case ChannelMajor:
		return "NCHW"
	case SpatialMajor:
		return "NHWC"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return l == ChannelMajor || l == SpatialMajor
}

// ParseLayout maps "nchw"/"nhwc" (any case) or "channel-major"/"spatial-major" to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "nchw", "channel-major":
		return ChannelMajor, nil
	case "nhwc", "spatial-major":
		return SpatialMajor, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}

// ImageShape builds the physical rank-4 shape for logical dims (n, c, h, w).
func (l Layout) ImageShape(n, c, h, w int) Shape {
	if l == SpatialMajor {
		return Shape{n, h, w, c}
	}
	return Shape{n, c, h, w}
}

// FilterShape builds the physical rank-4 shape of a filter bank whose
// per-filter ordering matches images stored in layout l:
// (K, C, R, S) for ChannelMajor and (K, R, S, C) for SpatialMajor.
func (l Layout) FilterShape(k, c, r, s int) Shape {
	if l == SpatialMajor {
		return Shape{k, r, s, c}
	}
	return Shape{k, c, r, s}
}
