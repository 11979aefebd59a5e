package chunker

import (
	"testing"
	"unicode/utf8"
)

func TestSplitEmptyReturnsNil(t *testing.T) {
	if segs := Split("", 10); segs != nil {
		t.Fatalf("Split(\"\") = %v, want nil", segs)
	}
}

func TestSplitRespectsMaxBytes(t *testing.T) {
	segs := Split("abcdefghij", 4)
	if len(segs) != 3 {
		t.Fatalf("len(segs) = %d, want 3", len(segs))
	}
	for i, want := range []string{"abcd", "efgh", "ij"} {
		if string(segs[i].Data) != want {
			t.Fatalf("segs[%d] = %q, want %q", i, segs[i].Data, want)
		}
		if segs[i].Index != uint32(i) {
			t.Fatalf("segs[%d].Index = %d, want %d", i, segs[i].Index, i)
		}
	}
}

func TestSplitOffsetsAreCumulative(t *testing.T) {
	segs := Split("abcdefghij", 4)
	want := []uint64{0, 4, 8}
	for i, w := range want {
		if segs[i].Offset != w {
			t.Fatalf("segs[%d].Offset = %d, want %d", i, segs[i].Offset, w)
		}
	}
}

func TestSplitDoesNotBreakMultibyteRunes(t *testing.T) {
	text := "a日b" // '日' is 3 bytes in UTF-8
	segs := Split(text, 2)
	for _, s := range segs {
		if !utf8Valid(s.Data) {
			t.Fatalf("segment %q is not valid UTF-8", s.Data)
		}
	}
}

func utf8Valid(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			return false
		}
		b = b[size:]
	}
	return true
}
