package cpu

import "github.com/jackzcai/blitz/internal/tensor"

// imageIndex maps (c, y, x) of one image sample to a linear offset.
type imageIndex struct {
	layout  tensor.Layout
	c, h, w int
}

func (ix imageIndex) at(c, y, x int) int {
	if ix.layout == tensor.SpatialMajor {
		return (y*ix.w+x)*ix.c + c
	}
	return (c*ix.h+y)*ix.w + x
}

func (ix imageIndex) size() int {
	return ix.c * ix.h * ix.w
}

// channelOf returns the channel that owns a linear offset of one sample.
func (ix imageIndex) channelOf(off int) int {
	if ix.layout == tensor.SpatialMajor {
		return off % ix.c
	}
	return off / (ix.h * ix.w)
}

// window describes a 2-D sliding window and the output grid it produces.
type window struct {
	r, s       int // window height, width
	padH, padW int
	strH, strW int
	p, q       int // output height, width
}

func outputSize(in, pad, k, stride int) int {
	return (in+2*pad-k)/stride + 1
}

// patchIndex maps (c, r, s, pos) to a linear offset in one sample's patch
// matrix, pos being the output position p*Q + q.
//
// ChannelMajor patch matrices are (C·R·S) × (P·Q), one column per output
// position. SpatialMajor patch matrices are (P·Q) × (R·S·C), one row per
// output position.
type patchIndex struct {
	layout  tensor.Layout
	c, r, s int
	pq      int
}

func (px patchIndex) crs() int {
	return px.c * px.r * px.s
}

func (px patchIndex) rows() int {
	if px.layout == tensor.SpatialMajor {
		return px.pq
	}
	return px.crs()
}

func (px patchIndex) cols() int {
	if px.layout == tensor.SpatialMajor {
		return px.crs()
	}
	return px.pq
}

func (px patchIndex) at(c, r, s, pos int) int {
	if px.layout == tensor.SpatialMajor {
		return pos*px.crs() + (r*px.s+s)*px.c + c
	}
	return ((c*px.r+r)*px.s+s)*px.pq + pos
}

func (px patchIndex) size() int {
	return px.crs() * px.pq
}
