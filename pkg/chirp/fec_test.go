package chirp

import "testing"

// the two fields used by the built-in protocols
var testFields = []struct {
	name string
	m    int
	poly int
}{
	{"GF32", 5, 0x25},
	{"GF16", 4, 0x13},
}

func TestField_MulDivInverse(t *testing.T) {
	for _, tf := range testFields {
		t.Run(tf.name, func(t *testing.T) {
			f := newField(tf.m, tf.poly)
			for a := 1; a < f.size; a++ {
				for b := 1; b < f.size; b++ {
					p := f.mul(a, b)
					if p == 0 {
						t.Fatalf("mul(%d, %d) = 0, want non-zero", a, b)
					}
					if got := f.div(p, b); got != a {
						t.Fatalf("div(mul(%d, %d), %d) = %d, want %d", a, b, b, got, a)
					}
				}
			}
		})
	}
}

func TestField_PowWraps(t *testing.T) {
	for _, tf := range testFields {
		t.Run(tf.name, func(t *testing.T) {
			f := newField(tf.m, tf.poly)
			if got := f.pow(0); got != 1 {
				t.Errorf("pow(0) = %d, want 1", got)
			}
			if got := f.pow(f.size - 1); got != 1 {
				t.Errorf("pow(%d) = %d, want 1 (order of the multiplicative group)", f.size-1, got)
			}
		})
	}
}

func TestRSCodec_CleanWordDecodes(t *testing.T) {
	c := newRSCodec(newField(5, 0x25), 2)
	data := []int{8, 23, 18, 3, 4, 10, 10, 0, 14, 0}

	word := c.encode(data)
	if len(word) != len(data)+2 {
		t.Fatalf("encode() len = %d, want %d", len(word), len(data)+2)
	}

	got, err := c.decode(append([]int(nil), word...))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Errorf("decode()[%d] = %d, want %d", i, got[i], data[i])
		}
	}
}

// TestRSCodec_SingleErrorCorrected corrupts every position of the codeword in
// turn, with every possible wrong value, and expects the original payload
// back each time.
func TestRSCodec_SingleErrorCorrected(t *testing.T) {
	for _, tf := range testFields {
		t.Run(tf.name, func(t *testing.T) {
			f := newField(tf.m, tf.poly)
			c := newRSCodec(f, 2)

			data := make([]int, 8)
			for i := range data {
				data[i] = (i * 3) % f.size
			}
			word := c.encode(data)

			for pos := range word {
				for e := 1; e < f.size; e++ {
					corrupted := append([]int(nil), word...)
					corrupted[pos] ^= e
					got, err := c.decode(corrupted)
					if err != nil {
						t.Fatalf("decode() with error %d at pos %d: %v", e, pos, err)
					}
					for i := range data {
						if got[i] != data[i] {
							t.Fatalf("decode() with error %d at pos %d: payload[%d] = %d, want %d",
								e, pos, i, got[i], data[i])
						}
					}
				}
			}
		})
	}
}

// TestRSCodec_DoubleErrorRejected checks that corrupting two positions never
// silently yields a wrong payload: the word is either rejected or, in the
// rare aliasing case, corrected back to the original.
func TestRSCodec_DoubleErrorRejected(t *testing.T) {
	f := newField(5, 0x25)
	c := newRSCodec(f, 2)

	data := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	word := c.encode(data)

	rejected, passedThrough := 0, 0
	for p1 := 0; p1 < len(word); p1++ {
		for p2 := p1 + 1; p2 < len(word); p2++ {
			corrupted := append([]int(nil), word...)
			corrupted[p1] ^= 5
			corrupted[p2] ^= 9
			got, err := c.decode(corrupted)
			if err != nil {
				rejected++
				continue
			}
			// A distance-3 code cannot reject every double error: some land
			// within correction range of a different codeword. What it must
			// never do is hand the corrupted payload back unmodified.
			same := true
			for i := range data {
				if got[i] != data[i] {
					same = false
					break
				}
			}
			if same && (p1 < len(data) || p2 < len(data)) {
				passedThrough++
			}
		}
	}
	total := len(word) * (len(word) - 1) / 2
	if passedThrough > 0 {
		t.Errorf("%d double errors passed through undetected", passedThrough)
	}
	if rejected < total/3 {
		t.Errorf("rejected %d of %d double errors, want at least a third", rejected, total)
	}
}

func TestRSCodec_EncodeProducesValidCodeword(t *testing.T) {
	for _, tf := range testFields {
		t.Run(tf.name, func(t *testing.T) {
			f := newField(tf.m, tf.poly)
			c := newRSCodec(f, 2)
			for trial := 0; trial < f.size; trial++ {
				data := []int{trial % f.size, (trial * 7) % f.size, (trial + 3) % f.size}
				word := c.encode(data)
				if s1, s2 := c.syndromes(word); s1 != 0 || s2 != 0 {
					t.Fatalf("syndromes(encode(%v)) = %d, %d, want 0, 0", data, s1, s2)
				}
			}
		})
	}
}
