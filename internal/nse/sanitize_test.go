package nse

import "testing"

func TestSanitizePassesPrintableASCII(t *testing.T) {
	in := "hello world 123!@#"
	if got := Sanitize(in); got != in {
		t.Errorf("expected unchanged output, got %q", got)
	}
}

func TestSanitizeEscapesControlBytes(t *testing.T) {
	in := string([]byte{0x00, 0x01, 0x7F})
	want := `\x00\x01\x7F`
	if got := Sanitize(in); got != want {
		t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
	}
}

func TestSanitizePreservesTabAndNewlineAndCR(t *testing.T) {
	in := "a\tb\nc\rd"
	if got := Sanitize(in); got != in {
		t.Errorf("expected tab/LF/CR left untouched, got %q", got)
	}
}

func TestSanitizeEscapesHighBytes(t *testing.T) {
	in := string([]byte{0xFF})
	if got := Sanitize(in); got != `\xFF` {
		t.Errorf("Sanitize(0xFF) = %q, want \\xFF", got)
	}
}
