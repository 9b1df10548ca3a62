package types

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseAddress_Padding(t *testing.T) {
	a, err := ParseAddress("0xab")
	if err != nil {
		t.Fatalf("ParseAddress() error: %v", err)
	}
	want := "0x00000000000000000000000000000000000000ab"
	if a.Hex() != want {
		t.Errorf("Hex() = %s, want %s", a.Hex(), want)
	}
}

func TestParseAddress_FullLength(t *testing.T) {
	in := "0xfe1a06db2b9c1dfbbf47bedcf0e39674c3b8b4c1"
	a, err := ParseAddress(in)
	if err != nil {
		t.Fatalf("ParseAddress() error: %v", err)
	}
	if a.Hex() != in {
		t.Errorf("Hex() = %s, want %s", a.Hex(), in)
	}
}

func TestParseAddress_TooLong(t *testing.T) {
	_, err := ParseAddress("0x" + strings.Repeat("ab", 21))
	if err == nil {
		t.Error("ParseAddress() should reject input longer than 20 bytes")
	}
}

func TestParseAddress_BadHex(t *testing.T) {
	_, err := ParseAddress("0xzz")
	if err == nil {
		t.Error("ParseAddress() should reject non-hex input")
	}
}

func TestAddress_TextRoundTrip(t *testing.T) {
	a, err := ParseAddress("0xfe1a06db2b9c1dfbbf47bedcf0e39674c3b8b4c1")
	if err != nil {
		t.Fatalf("ParseAddress() error: %v", err)
	}
	text, err := a.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error: %v", err)
	}
	var back Address
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText() error: %v", err)
	}
	if back != a {
		t.Errorf("round trip mismatch: %s != %s", back.Hex(), a.Hex())
	}
}

func TestParseValue_Padding(t *testing.T) {
	v, err := ParseValue("0x1")
	if err != nil {
		t.Fatalf("ParseValue() error: %v", err)
	}
	if v[ValueSize-1] != 0x01 {
		t.Errorf("last byte = %#x, want 0x01", v[ValueSize-1])
	}
	for i := 0; i < ValueSize-1; i++ {
		if v[i] != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, v[i])
		}
	}
}

func TestParseValue_TooLong(t *testing.T) {
	_, err := ParseValue(strings.Repeat("ff", 33))
	if err == nil {
		t.Error("ParseValue() should reject input longer than 32 bytes")
	}
}

func TestParseData(t *testing.T) {
	d, err := ParseData("0xdeadbeef")
	if err != nil {
		t.Fatalf("ParseData() error: %v", err)
	}
	if !bytes.Equal(d, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("ParseData() = %x", d)
	}

	empty, err := ParseData("0x")
	if err != nil {
		t.Fatalf("ParseData(\"0x\") error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ParseData(\"0x\") = %x, want empty", empty)
	}
}

func TestParseHash(t *testing.T) {
	in := "0x" + strings.Repeat("12", 32)
	h, err := ParseHash(in)
	if err != nil {
		t.Fatalf("ParseHash() error: %v", err)
	}
	if h.Hex() != in {
		t.Errorf("Hex() = %s, want %s", h.Hex(), in)
	}

	if _, err := ParseHash("0x1234"); err == nil {
		t.Error("ParseHash() should reject short input")
	}
}
