package tabkv

import (
	"strings"
	"testing"
)

func TestBox_Roundtrip(t *testing.T) {
	type widget struct {
		Name  string
		Count int
	}
	in := widget{Name: "gear", Count: 3}

	raw := sealBox(nil, in)
	if !isBoxed(raw) {
		t.Fatalf("** sealed data not recognized as boxed: %x", raw)
	}

	out, err := openBox[widget](raw)
	if err != nil {
		t.Fatalf("** openBox failed: %v", err)
	}
	if out != in {
		t.Errorf("** openBox = %v, wanted %v", out, in)
	}
}

func TestBox_RoundtripScalar(t *testing.T) {
	raw := sealBox(nil, 42)
	v, err := openBox[int](raw)
	if err != nil {
		t.Fatalf("** openBox failed: %v", err)
	}
	if v != 42 {
		t.Errorf("** openBox = %v, wanted 42", v)
	}
}

func TestBox_UnknownTag(t *testing.T) {
	raw := sealBox(nil, "hello")
	raw[0] = 0x7f
	_, err := openBox[string](raw)
	if err == nil || !strings.Contains(err.Error(), "unknown tag") {
		t.Errorf("** got %v, wanted unknown tag error", err)
	}
}

func TestBox_UnsupportedFlags(t *testing.T) {
	raw := sealBox(nil, "hello")
	raw[1] = 0x01
	_, err := openBox[string](raw)
	if err == nil || !strings.Contains(err.Error(), "unsupported flags") {
		t.Errorf("** got %v, wanted unsupported flags error", err)
	}
}

func TestBox_Truncated(t *testing.T) {
	_, err := openBox[string](nil)
	if err == nil {
		t.Errorf("** openBox(nil) succeeded, wanted error")
	}
	_, err = openBox[string]([]byte{boxTagV1})
	if err == nil {
		t.Errorf("** openBox(tag only) succeeded, wanted error")
	}
}

func TestIsBoxed(t *testing.T) {
	if isBoxed(nil) {
		t.Errorf("** isBoxed(nil) = true")
	}
	if isBoxed([]byte{boxTagV1}) {
		t.Errorf("** isBoxed(1 byte) = true")
	}
	if !isBoxed([]byte{boxTagV1, 0}) {
		t.Errorf("** isBoxed(tag+flags) = false")
	}
	if isBoxed([]byte{0x00, 0x00}) {
		t.Errorf("** isBoxed(plain bytes) = true")
	}
}
