package chaintypes

import (
	"math"
	"testing"
)

func TestAddCapacity_Overflow(t *testing.T) {
	if _, err := AddCapacity(math.MaxUint64, 1); err != ErrCapacityOverflow {
		t.Fatalf("AddCapacity overflow = %v, want ErrCapacityOverflow", err)
	}
}

func TestAddCapacity_OK(t *testing.T) {
	got, err := AddCapacity(100, 200)
	if err != nil {
		t.Fatalf("AddCapacity: %v", err)
	}
	if got != 300 {
		t.Fatalf("AddCapacity(100, 200) = %d, want 300", got)
	}
}

func TestSubCapacity_Underflow(t *testing.T) {
	if _, err := SubCapacity(1, 2); err != ErrCapacityOverflow {
		t.Fatalf("SubCapacity underflow = %v, want ErrCapacityOverflow", err)
	}
}

func TestSubCapacity_OK(t *testing.T) {
	got, err := SubCapacity(300, 100)
	if err != nil {
		t.Fatalf("SubCapacity: %v", err)
	}
	if got != 200 {
		t.Fatalf("SubCapacity(300, 100) = %d, want 200", got)
	}
}

func TestSumCapacity_StopsAtFirstOverflow(t *testing.T) {
	_, err := SumCapacity([]uint64{1, 2, math.MaxUint64})
	if err != ErrCapacityOverflow {
		t.Fatalf("SumCapacity overflow = %v, want ErrCapacityOverflow", err)
	}
}

func TestSumCapacity_OK(t *testing.T) {
	got, err := SumCapacity([]uint64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("SumCapacity: %v", err)
	}
	if got != 10 {
		t.Fatalf("SumCapacity = %d, want 10", got)
	}
}

func TestCellOutput_OccupiedCapacity(t *testing.T) {
	out := &CellOutput{
		Capacity: 0,
		Lock:     Script{CodeHash: Hash{1}, HashType: HashTypeType, Args: []byte{1, 2, 3, 4}},
	}
	data := []byte("hello")
	got := out.OccupiedCapacity(data)

	lockSize := len(out.Lock.signingBytes(nil))
	want := uint64(8+lockSize+len(data)) * bytesPerShannonCapacity
	if got != want {
		t.Fatalf("OccupiedCapacity = %d, want %d", got, want)
	}
}

func TestCellOutput_OccupiedCapacity_WithTypeScript(t *testing.T) {
	withoutType := &CellOutput{Lock: Script{}}
	withType := &CellOutput{Lock: Script{}, Type: &Script{CodeHash: Hash{9}}}

	got1 := withoutType.OccupiedCapacity(nil)
	got2 := withType.OccupiedCapacity(nil)
	if got2 <= got1 {
		t.Fatalf("OccupiedCapacity with a type script (%d) must exceed without (%d)", got2, got1)
	}
}
