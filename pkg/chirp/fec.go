package chirp

import "errors"

// errUncorrectable is returned by rsCodec.decode when the received symbol
// sequence fails the parity check and cannot be repaired. It is never
// surfaced to callers of the SDK — a failed decode is treated as ambient
// noise and dropped.
var errUncorrectable = errors.New("chirp: symbol sequence failed error correction")

// field is a Galois field GF(2^m) with generator element 2, backed by
// exp/log tables. Symbol alphabets map 1:1 onto field elements, so field
// arithmetic operates directly on symbol values.
type field struct {
	m    int
	size int // 2^m
	exp  []int
	log  []int
}

// newField builds GF(2^m) using the given primitive polynomial (including
// the x^m term, e.g. 0x25 for x^5+x^2+1).
func newField(m, poly int) *field {
	f := &field{
		m:    m,
		size: 1 << m,
		exp:  make([]int, 2*(1<<m)),
		log:  make([]int, 1<<m),
	}
	x := 1
	for i := 0; i < f.size-1; i++ {
		f.exp[i] = x
		f.log[x] = i
		x <<= 1
		if x&f.size != 0 {
			x ^= poly
		}
	}
	// Duplicate the table so products of logs never need a modulo.
	for i := f.size - 1; i < len(f.exp); i++ {
		f.exp[i] = f.exp[i-(f.size-1)]
	}
	return f
}

func (f *field) mul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[f.log[a]+f.log[b]]
}

// div returns a/b. b must be non-zero.
func (f *field) div(a, b int) int {
	if a == 0 {
		return 0
	}
	return f.exp[f.log[a]+(f.size-1)-f.log[b]]
}

// pow returns α^e for e ≥ 0.
func (f *field) pow(e int) int {
	return f.exp[e%(f.size-1)]
}

// rsCodec is a Reed-Solomon code over a symbol field with a fixed number of
// parity symbols. With two parity symbols it corrects any single symbol
// error and rejects a large share of garbled candidates; the demodulator's
// per-symbol quality gate does the rest of the work of keeping false
// positives out of the heard callback.
type rsCodec struct {
	f      *field
	parity int
	g1, g2 int // generator polynomial x^2 + g1·x + g2 = (x−α)(x−α²)
}

func newRSCodec(f *field, parity int) *rsCodec {
	if parity != 2 {
		panic("chirp: rsCodec supports exactly two parity symbols")
	}
	a1 := f.pow(1)
	a2 := f.pow(2)
	return &rsCodec{
		f:      f,
		parity: parity,
		g1:     a1 ^ a2,
		g2:     f.mul(a1, a2),
	}
}

// encode appends parity symbols to data and returns the full codeword.
// data symbols are the high-degree coefficients of the codeword polynomial.
func (c *rsCodec) encode(data []int) []int {
	r := make([]int, len(data)+c.parity)
	copy(r, data)
	for i := 0; i < len(data); i++ {
		coef := r[i]
		if coef == 0 {
			continue
		}
		r[i] = 0
		r[i+1] ^= c.f.mul(coef, c.g1)
		r[i+2] ^= c.f.mul(coef, c.g2)
	}
	out := make([]int, len(data)+c.parity)
	copy(out, data)
	out[len(data)] = r[len(data)]
	out[len(data)+1] = r[len(data)+1]
	return out
}

// syndromes evaluates the received polynomial at α and α².
func (c *rsCodec) syndromes(word []int) (s1, s2 int) {
	n := len(word)
	for i, w := range word {
		if w == 0 {
			continue
		}
		deg := n - 1 - i
		s1 ^= c.f.mul(w, c.f.pow(deg))
		s2 ^= c.f.mul(w, c.f.pow(2*deg))
	}
	return s1, s2
}

// decode verifies the codeword and strips the parity symbols, correcting a
// single symbol error in place when possible. Returns errUncorrectable when
// the word cannot be repaired.
func (c *rsCodec) decode(word []int) ([]int, error) {
	s1, s2 := c.syndromes(word)
	if s1 == 0 && s2 == 0 {
		return word[:len(word)-c.parity], nil
	}
	if s1 == 0 || s2 == 0 {
		return nil, errUncorrectable
	}

	// Single-error hypothesis: S1 = e·α^d, S2 = e·α^2d.
	x := c.f.div(s2, s1) // α^d
	deg := c.f.log[x]
	if deg >= len(word) {
		return nil, errUncorrectable
	}
	mag := c.f.div(s1, x)
	i := len(word) - 1 - deg
	word[i] ^= mag

	if s1, s2 = c.syndromes(word); s1 != 0 || s2 != 0 {
		return nil, errUncorrectable
	}
	return word[:len(word)-c.parity], nil
}
