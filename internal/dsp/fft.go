// Package dsp provides the fixed-size forward DFT the OFDM decoder runs
// once per block.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Engine is an in-place radix-2 Cooley-Tukey FFT over a reused buffer of
// size N. N must be a power of two — true for every DAB mode's Tu.
type Engine struct {
	n    int
	bits int
}

// NewEngine builds an Engine for transforms of size n.
func NewEngine(n int) (*Engine, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("dsp: size %d is not a power of two", n)
	}
	bits := 0
	for tmp := n; tmp > 1; tmp >>= 1 {
		bits++
	}
	return &Engine{n: n, bits: bits}, nil
}

// Size returns the transform length this Engine was built for.
func (e *Engine) Size() int {
	return e.n
}

// Forward computes the DFT of buf in place. len(buf) must equal e.Size().
func (e *Engine) Forward(buf []complex128) {
	e.transform(buf, false)
}

// Inverse computes the inverse DFT of buf in place, scaled by 1/N.
func (e *Engine) Inverse(buf []complex128) {
	e.transform(buf, true)
	scale := complex(1.0/float64(e.n), 0)
	for i := range buf {
		buf[i] *= scale
	}
}

func (e *Engine) transform(buf []complex128, inverse bool) {
	if len(buf) != e.n {
		panic(fmt.Sprintf("dsp: buffer length %d does not match engine size %d", len(buf), e.n))
	}
	e.bitReverse(buf)

	sign := -1.0
	if inverse {
		sign = 1.0
	}
	for size := 2; size <= e.n; size <<= 1 {
		halfSize := size >> 1
		wn := cmplx.Exp(complex(0, sign*2*math.Pi/float64(size)))
		for start := 0; start < e.n; start += size {
			w := complex(1, 0)
			for j := 0; j < halfSize; j++ {
				u := buf[start+j]
				v := w * buf[start+j+halfSize]
				buf[start+j] = u + v
				buf[start+j+halfSize] = u - v
				w *= wn
			}
		}
	}
}

func (e *Engine) bitReverse(buf []complex128) {
	for i := 0; i < e.n; i++ {
		j := reverseBits(i, e.bits)
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
}

func reverseBits(x, bits int) int {
	result := 0
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}
