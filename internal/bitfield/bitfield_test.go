package bitfield

import "testing"

type testFlags struct {
	Present bool   `bitfield:",1"`
	Writ    bool   `bitfield:",1"`
	Kind    uint32 `bitfield:",4"`
}

func TestPackUnpackRoundTrip(t *testing.T) {
	in := testFlags{Present: true, Writ: false, Kind: 9}
	packed, err := Pack(&in, &Config{NumBits: 8})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	var out testFlags
	if err := Unpack(packed, &out); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestPackOverflow(t *testing.T) {
	in := testFlags{Kind: 31}
	if _, err := Pack(&in, &Config{NumBits: 8}); err == nil {
		t.Fatalf("expected overflow error for Kind=31 in 4 bits")
	}
}

type paddedFlags struct {
	Low  uint32 `bitfield:",2"`
	_    uint32 `bitfield:",3"`
	High uint32 `bitfield:",2"`
}

func TestUnpackSkipsBlankPaddingFields(t *testing.T) {
	in := paddedFlags{Low: 3, High: 2}
	packed, err := Pack(&in, &Config{NumBits: 8})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if packed != 3|2<<5 {
		t.Fatalf("packed = %#x, want %#x (padding bits must still shift later fields)", packed, 3|2<<5)
	}

	var out paddedFlags
	if err := Unpack(packed, &out); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if out.Low != 3 || out.High != 2 {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}
