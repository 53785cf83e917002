package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", base, KindUnknown},
		{"validation", Validation("ImportData", "missing %s", "habits"), KindValidation},
		{"permission", Permission("ListHabits", base), KindPermission},
		{"transient", Transient("ListHabits", base), KindTransient},
		{"not found", NotFound("UpdateLog", "habit h1"), KindNotFound},
		{"storage", Storage("CreateHabit", base), KindStorage},
		{"wrapped", fmt.Errorf("sync: %w", Permission("ListHabits", base)), KindPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSentinelsMatchByKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", Transient("ListHabits", errors.New("connection reset")))

	if !errors.Is(err, ErrTransient) {
		t.Error("errors.Is(err, ErrTransient) = false, want true")
	}
	if errors.Is(err, ErrPermission) {
		t.Error("a transient failure must not match ErrPermission")
	}
	if !IsTransient(err) || IsPermission(err) {
		t.Error("predicates disagree with the error kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("disk full")
	err := Storage("UpdateLog", base)
	if !errors.Is(err, base) {
		t.Error("classified error should unwrap to its cause")
	}
	if err.Error() != "UpdateLog: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestE_NilPassthrough(t *testing.T) {
	if E(KindStorage, "op", nil) != nil {
		t.Error("E with nil cause should return nil")
	}
	if Permission("op", nil) != nil {
		t.Error("Permission with nil cause should return nil")
	}
}

func TestFormat_IncludesKind(t *testing.T) {
	got := Format(NotFound("UpdateLog", "habit h1"))
	want := "Error (not found): UpdateLog: habit h1 not found"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}
