package coherence

import (
	"fmt"
	"strconv"
	"strings"
)

// AddressBits renders index as a zero-padded bit string of the given width,
// the normative address encoding of §6 ("0011" for address 3 with 16
// blocks).
func AddressBits(index, width int) string {
	s := strconv.FormatInt(int64(index), 2)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

// ParseAddressBits parses a bit string produced by AddressBits back into an
// integer index.
func ParseAddressBits(bits string) (int, error) {
	if bits == "" {
		return 0, fmt.Errorf("coherence: empty address")
	}
	for _, r := range bits {
		if r != '0' && r != '1' {
			return 0, fmt.Errorf("coherence: address %q is not a bit string", bits)
		}
	}
	v, err := strconv.ParseInt(bits, 2, 64)
	if err != nil {
		return 0, fmt.Errorf("coherence: address %q: %w", bits, err)
	}
	return int(v), nil
}

// DataHex renders a 16-bit word as exactly 4 lowercase hex digits, the
// normative data encoding of §6.
func DataHex(v uint16) string {
	return fmt.Sprintf("%04x", v)
}

// ParseDataHex parses a 4-digit hex word produced by DataHex.
func ParseDataHex(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("coherence: data %q: %w", s, err)
	}
	return uint16(v), nil
}

// AddressWidth returns log2(memorySize), the bit width every address
// string must have (§3 invariant 5).
func AddressWidth(memorySize int) int {
	width := 0
	for (1 << width) < memorySize {
		width++
	}
	return width
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
