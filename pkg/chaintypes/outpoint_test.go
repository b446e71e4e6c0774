package chaintypes

import "testing"

func TestCellbaseOutPoint_IsSentinel(t *testing.T) {
	op := CellbaseOutPoint(42)
	if !op.IsCellbaseSentinel(42) {
		t.Fatal("CellbaseOutPoint(42) is not its own sentinel")
	}
	if op.IsCellbaseSentinel(43) {
		t.Fatal("CellbaseOutPoint(42) matched sentinel for a different number")
	}
}

func TestOutPoint_IsZero(t *testing.T) {
	if !CellbaseOutPoint(0).IsZero() {
		t.Fatal("CellbaseOutPoint's TxHash should always be zero")
	}
	op := OutPoint{TxHash: Hash{1}, Index: 0}
	if op.IsZero() {
		t.Fatal("OutPoint with non-zero TxHash reported IsZero")
	}
}

func TestOutPoint_String(t *testing.T) {
	op := OutPoint{TxHash: Hash{1}, Index: 5}
	got := op.String()
	if got == "" {
		t.Fatal("OutPoint.String() returned empty string")
	}
}
