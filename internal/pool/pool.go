// Package pool provides sync.Pool-backed buffers for the render loop and the
// bus socket reader.
package pool

import (
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
)

// ByteSliceSize matches the largest datagram a bus socket accepts.
const ByteSliceSize = 64 * 1024

var stringBuilderPool = sync.Pool{
	New: func() any { return &strings.Builder{} },
}

// GetStringBuilder returns an empty builder.
func GetStringBuilder() *strings.Builder {
	return stringBuilderPool.Get().(*strings.Builder)
}

// PutStringBuilder resets sb and returns it to the pool.
func PutStringBuilder(sb *strings.Builder) {
	sb.Reset()
	stringBuilderPool.Put(sb)
}

var layerSlicePool = sync.Pool{
	New: func() any {
		s := make([]*lipgloss.Layer, 0, 16)
		return &s
	},
}

// GetLayerSlice returns an empty layer slice with room for a typical frame.
func GetLayerSlice() *[]*lipgloss.Layer {
	return layerSlicePool.Get().(*[]*lipgloss.Layer)
}

// PutLayerSlice clears s and returns it to the pool.
func PutLayerSlice(s *[]*lipgloss.Layer) {
	clear(*s)
	*s = (*s)[:0]
	layerSlicePool.Put(s)
}

var byteSlicePool = sync.Pool{
	New: func() any {
		b := make([]byte, ByteSliceSize)
		return &b
	},
}

// GetByteSlice returns a ByteSliceSize buffer. Contents are not zeroed.
func GetByteSlice() *[]byte {
	return byteSlicePool.Get().(*[]byte)
}

// PutByteSlice restores b to full length and returns it to the pool.
func PutByteSlice(b *[]byte) {
	*b = (*b)[:cap(*b)]
	byteSlicePool.Put(b)
}
