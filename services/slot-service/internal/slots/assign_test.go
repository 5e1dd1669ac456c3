package slots

import (
	"testing"
	"time"
)

func TestAssign_RandomIgnoresInputOrder(t *testing.T) {
	base := time.Date(2022, 2, 14, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 48; i++ {
		start := base.Add(time.Duration(i) * 30 * time.Minute)
		a, okA := Assign(start, []string{"alice", "bob", "carol"}, AssignRandom, "")
		b, okB := Assign(start, []string{"carol", "alice", "bob"}, AssignRandom, "")
		if !okA || !okB {
			t.Fatalf("expected an assignment at %s", start)
		}
		if a != b {
			t.Fatalf("assignment at %s depends on order: %s vs %s", start, a, b)
		}
	}
}

func TestAssign_RandomIsStable(t *testing.T) {
	start := time.Date(2022, 2, 14, 7, 0, 0, 0, time.UTC)
	first, _ := Assign(start, []string{"u1", "u2"}, AssignRandom, "")
	for i := 0; i < 10; i++ {
		got, _ := Assign(start, []string{"u2", "u1"}, AssignRandom, "")
		if got != first {
			t.Fatalf("expected %s, got %s", first, got)
		}
	}
}

func TestAssign_Chosen(t *testing.T) {
	start := time.Date(2022, 2, 14, 7, 0, 0, 0, time.UTC)
	if got, ok := Assign(start, []string{"u1", "u2"}, AssignChosen, "u2"); !ok || got != "u2" {
		t.Fatalf("expected u2, got %q (ok=%v)", got, ok)
	}
	if _, ok := Assign(start, []string{"u1"}, AssignChosen, "u2"); ok {
		t.Fatalf("expected no slot when chosen user is busy")
	}
}

func TestAssign_NoFreeUsers(t *testing.T) {
	if _, ok := Assign(time.Now(), nil, AssignRandom, ""); ok {
		t.Fatalf("expected no assignment without free users")
	}
}
