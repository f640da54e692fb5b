package validate

import "testing"

func TestNameRejectsEmpty(t *testing.T) {
	if err := Name("worker", ""); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := Name("worker", "ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUniqueFindsDuplicate(t *testing.T) {
	if err := Unique("worker", []string{"a", "b", "a"}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := Unique("worker", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
