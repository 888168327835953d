package chirp

import (
	"math/rand/v2"
	"strings"
)

// IsValidIdentifier reports whether identifier can be chirped as-is under
// this protocol: exactly DataSymbols characters, all drawn from the
// protocol's alphabet. Validation never panics on malformed input; anything
// outside the protocol's capacity simply reports false.
func (p *Protocol) IsValidIdentifier(identifier string) bool {
	if len(identifier) != p.DataSymbols {
		return false
	}
	for i := 0; i < len(identifier); i++ {
		if strings.IndexByte(p.Alphabet, identifier[i]) < 0 {
			return false
		}
	}
	return true
}

// IsValidArray reports whether symbols is a valid raw payload under this
// protocol: exactly DataSymbols values, each within the symbol alphabet.
func (p *Protocol) IsValidArray(symbols []int) bool {
	if len(symbols) != p.DataSymbols {
		return false
	}
	for _, s := range symbols {
		if s < 0 || s >= len(p.Alphabet) {
			return false
		}
	}
	return true
}

// RandomIdentifier generates a uniformly random identifier valid under this
// protocol, e.g. "8nk34aa0e0" for the standard protocol.
func (p *Protocol) RandomIdentifier() string {
	var b strings.Builder
	b.Grow(p.DataSymbols)
	for i := 0; i < p.DataSymbols; i++ {
		b.WriteByte(p.Alphabet[rand.IntN(len(p.Alphabet))])
	}
	return b.String()
}

// RandomArray generates a uniformly random symbol payload valid under this
// protocol.
func (p *Protocol) RandomArray() []int {
	symbols := make([]int, p.DataSymbols)
	for i := range symbols {
		symbols[i] = rand.IntN(len(p.Alphabet))
	}
	return symbols
}

// IsValidShortcode reports whether the legacy shortcode can be chirped.
//
// Deprecated: shortcodes are the legacy name for identifiers. Use
// [Protocol.IsValidIdentifier] instead.
func (p *Protocol) IsValidShortcode(shortcode string) bool {
	return p.IsValidIdentifier(shortcode)
}

// RandomShortcode generates a random legacy shortcode.
//
// Deprecated: shortcodes are the legacy name for identifiers. Use
// [Protocol.RandomIdentifier] instead.
func (p *Protocol) RandomShortcode() string {
	return p.RandomIdentifier()
}

// symbolsOf converts a validated identifier to its symbol values.
func (p *Protocol) symbolsOf(identifier string) []int {
	symbols := make([]int, len(identifier))
	for i := 0; i < len(identifier); i++ {
		symbols[i] = strings.IndexByte(p.Alphabet, identifier[i])
	}
	return symbols
}

// identifierOf converts payload symbol values back to an identifier string.
func (p *Protocol) identifierOf(symbols []int) string {
	var b strings.Builder
	b.Grow(len(symbols))
	for _, s := range symbols {
		b.WriteByte(p.Alphabet[s])
	}
	return b.String()
}
