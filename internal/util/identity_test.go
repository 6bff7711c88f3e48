package util

import "testing"

func TestHashRRN_NormalizesHyphens(t *testing.T) {
	h := NewIdentityHasher("test-key")

	withHyphen := h.HashRRN("900101-1234567")
	without := h.HashRRN("9001011234567")

	if withHyphen != without {
		t.Error("hyphenated and plain registration numbers must hash identically")
	}
	if len(withHyphen) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(withHyphen))
	}
}

func TestHashRRN_KeyedOutput(t *testing.T) {
	a := NewIdentityHasher("key-a").HashRRN("9001011234567")
	b := NewIdentityHasher("key-b").HashRRN("9001011234567")
	if a == b {
		t.Error("different keys must produce different tokens")
	}
}

func TestVerifyRRN(t *testing.T) {
	h := NewIdentityHasher("test-key")
	token := h.HashRRN("900101-1234567")

	if !h.VerifyRRN("9001011234567", token) {
		t.Error("expected verification to succeed for matching number")
	}
	if h.VerifyRRN("900101-7654321", token) {
		t.Error("expected verification to fail for different number")
	}
}

func TestCacheFragment(t *testing.T) {
	h := NewIdentityHasher("test-key")
	token := h.HashRRN("9001011234567")

	frag := CacheFragment(token)
	if len(frag) != 16 {
		t.Errorf("fragment length = %d, want 16", len(frag))
	}
	if CacheFragment("short") != "short" {
		t.Error("short tokens pass through unchanged")
	}
}
