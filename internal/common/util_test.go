package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
	WipeByteArray(nil)
}

func TestGenerateRandByteArray_Length(t *testing.T) {
	const n = 24
	if got := GenerateRandByteArray(n); len(got) != n {
		t.Fatalf("expected length %d, got %d", n, len(got))
	}
}

func TestSafetyRejectedError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("generate: %w", &SafetyRejectedError{Field: "concept", Reason: "violent content"})

	if !errors.Is(err, ErrSafetyRejected) {
		t.Fatalf("expected errors.Is(err, ErrSafetyRejected)")
	}
	var sr *SafetyRejectedError
	if !errors.As(err, &sr) || sr.Reason != "violent content" {
		t.Fatalf("expected reason to survive wrapping, got %v", sr)
	}
	if sr.Error() != "concept rejected: violent content" {
		t.Fatalf("unexpected message %q", sr.Error())
	}
}
