package residual

import (
	"math/rand/v2"
)

// RandomBound is the exclusive bound on the magnitude of synthesized
// residual values.
const RandomBound = 30

// Synthesizer fills plane buffers with bounded pseudorandom residuals.
//
// The generator is seeded once and never reseeded, so a stage configured
// with the same seed produces the same residual sequence.
type Synthesizer struct {
	rng *rand.Rand
}

// NewSynthesizer creates a synthesizer seeded with seed.
func NewSynthesizer(seed uint64) *Synthesizer {
	return &Synthesizer{rng: rand.New(rand.NewPCG(seed, 0))}
}

// Fill writes values in (-RandomBound, RandomBound) to the interior of buf,
// row by row. Each value is a 32-bit draw read as signed, modulo RandomBound.
// The one-sample border is left untouched.
func (s *Synthesizer) Fill(buf *PlaneBuffer) {
	for y := 1; y < buf.Height-1; y++ {
		row := buf.Data[y*buf.Width : (y+1)*buf.Width]
		for x := 1; x < buf.Width-1; x++ {
			row[x] = int8(int32(s.rng.Uint32()) % RandomBound)
		}
	}
}
