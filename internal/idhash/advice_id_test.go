package idhash

import "testing"

func TestComputeAdviceID_Deterministic(t *testing.T) {
	a := ComputeAdviceID("Pool111", "Pos222", 1700000000000, 48)
	b := ComputeAdviceID("Pool111", "Pos222", 1700000000000, 48)

	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex hash, got %d chars", len(a))
	}
}

func TestComputeAdviceID_DistinctInputs(t *testing.T) {
	base := ComputeAdviceID("Pool111", "Pos222", 1700000000000, 48)

	variants := []string{
		ComputeAdviceID("Pool999", "Pos222", 1700000000000, 48),
		ComputeAdviceID("Pool111", "Pos999", 1700000000000, 48),
		ComputeAdviceID("Pool111", "Pos222", 1700000000001, 48),
		ComputeAdviceID("Pool111", "Pos222", 1700000000000, 49),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base ID", i)
		}
	}
}

func TestComputeAdviceID_SeparatorPreventsAmbiguity(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not hash identically.
	a := ComputeAdviceID("ab", "c", 1, 1)
	b := ComputeAdviceID("a", "bc", 1, 1)
	if a == b {
		t.Errorf("field separator failed to disambiguate inputs")
	}
}
