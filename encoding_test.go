package coherence

import "testing"

func TestAddressBits(t *testing.T) {
	cases := []struct {
		index, width int
		want         string
	}{
		{3, 4, "0011"},
		{0, 4, "0000"},
		{15, 4, "1111"},
		{1, 1, "1"},
	}
	for _, c := range cases {
		if got := AddressBits(c.index, c.width); got != c.want {
			t.Errorf("AddressBits(%d, %d) = %q, want %q", c.index, c.width, got, c.want)
		}
	}
}

func TestParseAddressBitsRoundTrip(t *testing.T) {
	for i := 0; i < 16; i++ {
		bits := AddressBits(i, 4)
		got, err := ParseAddressBits(bits)
		if err != nil {
			t.Fatalf("ParseAddressBits(%q): %v", bits, err)
		}
		if got != i {
			t.Errorf("ParseAddressBits(%q) = %d, want %d", bits, got, i)
		}
	}
}

func TestParseAddressBitsRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "012", "abcd", "10x0"} {
		if _, err := ParseAddressBits(bad); err == nil {
			t.Errorf("ParseAddressBits(%q) = nil error, want error", bad)
		}
	}
}

func TestDataHex(t *testing.T) {
	cases := []struct {
		v    uint16
		want string
	}{
		{0, "0000"},
		{1, "0001"},
		{0xabcd, "abcd"},
		{0xffff, "ffff"},
	}
	for _, c := range cases {
		if got := DataHex(c.v); got != c.want {
			t.Errorf("DataHex(%#x) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestParseDataHexRoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 0x1234, 0xffff} {
		hex := DataHex(v)
		got, err := ParseDataHex(hex)
		if err != nil {
			t.Fatalf("ParseDataHex(%q): %v", hex, err)
		}
		if got != v {
			t.Errorf("ParseDataHex(%q) = %#x, want %#x", hex, got, v)
		}
	}
}

func TestAddressWidth(t *testing.T) {
	cases := []struct {
		size int
		want int
	}{
		{2, 1},
		{4, 2},
		{16, 4},
		{1024, 10},
	}
	for _, c := range cases {
		if got := AddressWidth(c.size); got != c.want {
			t.Errorf("AddressWidth(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 1024} {
		if !IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = false, want true", n)
		}
	}
	for _, n := range []int{0, -2, 3, 5, 1023} {
		if IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = true, want false", n)
		}
	}
}
