package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func solidFrame(r, g, b uint8) []uint8 {
	buf := make([]uint8, Width*Height*4)
	for i := 0; i < Width*Height; i++ {
		buf[i*4+0], buf[i*4+1], buf[i*4+2], buf[i*4+3] = r, g, b, 0xFF
	}
	return buf
}

func TestPixellateIsIdentity(t *testing.T) {
	src := solidFrame(10, 20, 30)
	dst := make([]uint8, len(src))

	Pixellate{}.Apply(dst, src)

	assert.Equal(t, src, dst)
}

func TestNtscDarkensOddScanlines(t *testing.T) {
	src := solidFrame(200, 200, 200)
	dst := make([]uint8, len(src))
	n := NewNtsc()

	n.Apply(dst, src)

	evenPixel := dst[0]
	oddRow := 1 * Width * 4
	oddPixel := dst[oddRow]
	assert.Less(t, oddPixel, evenPixel, "odd scanlines should be darker than even ones")
}

func TestNtscPreservesAlpha(t *testing.T) {
	src := solidFrame(100, 100, 100)
	dst := make([]uint8, len(src))
	NewNtsc().Apply(dst, src)

	for y := 0; y < Height; y++ {
		assert.Equal(t, uint8(0xFF), dst[(y*Width)*4+3])
	}
}

func TestChainComposesStages(t *testing.T) {
	src := solidFrame(50, 50, 50)
	dst := make([]uint8, len(src))

	c := NewChain(Pixellate{}, NewNtsc())
	c.Apply(dst, src)

	direct := make([]uint8, len(src))
	NewNtsc().Apply(direct, src)
	assert.Equal(t, direct, dst)
}

func TestEmptyChainCopies(t *testing.T) {
	src := solidFrame(1, 2, 3)
	dst := make([]uint8, len(src))
	NewChain().Apply(dst, src)
	assert.Equal(t, src, dst)
}
