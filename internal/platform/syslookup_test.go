package platform

import "testing"

func TestBinaryNameForDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"php", "php"},
		{"sh.bun", "bun"},
		{"example.gcc", "gcc"},
		{"a.b.c", "c"},
	}
	for _, tt := range tests {
		if got := BinaryNameForDomain(tt.domain); got != tt.want {
			t.Errorf("BinaryNameForDomain(%q) = %q, want %q", tt.domain, got, tt.want)
		}
	}
}

func TestSystemLookup_Found(t *testing.T) {
	if !SystemLookup("sh") {
		t.Error("SystemLookup(\"sh\") = false, want true (sh is always on PATH in this environment)")
	}
}

func TestSystemLookup_NotFound(t *testing.T) {
	if SystemLookup("example.definitely-not-a-real-binary-xyz") {
		t.Error("SystemLookup() = true for a binary name that should not exist")
	}
}
