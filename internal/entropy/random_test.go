package entropy

import "testing"

func TestSameSeedSameStream(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float(), b.Float(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
	if a.Draws() != 100 {
		t.Fatalf("Draws = %d", a.Draws())
	}
}

func TestIntnNonPositive(t *testing.T) {
	s := New(1)
	if got := s.Intn(0); got != 0 {
		t.Fatalf("Intn(0) = %d", got)
	}
	if s.Draws() != 0 {
		t.Fatalf("Intn(0) consumed a draw")
	}
}

func TestZeroSeedIsReplaced(t *testing.T) {
	if New(0).Seed() == 0 {
		t.Fatalf("zero seed kept")
	}
}

func TestDeriveIndependentOfMainStream(t *testing.T) {
	a, b := New(9), New(9)
	a.Float()
	if a.Derive(100).Int63() != b.Derive(100).Int63() {
		t.Fatalf("derived stream depends on main draws")
	}
}
