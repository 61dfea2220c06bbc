package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "paragraph", ID: "1A2B3C4D"},
			wantMsg:  "paragraph not found: 1A2B3C4D",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "undo record"},
			wantMsg:  "undo record not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("locked")
		err := &NotFoundError{Resource: "paragraph", ID: "00AA", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestMismatchError(t *testing.T) {
	err := NewMismatch("run count", 3, 2)
	if got, want := err.Error(), "run count mismatch: expected 3, got 2"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrMismatch) {
		t.Error("MismatchError should match ErrMismatch")
	}

	zero := &MismatchError{What: "original length", Err: ErrZeroLength}
	if !errors.Is(zero, ErrZeroLength) {
		t.Error("zero-length mismatch should match ErrZeroLength")
	}
	if !errors.Is(zero, ErrMismatch) {
		t.Error("ErrZeroLength should be a kind of ErrMismatch")
	}
}

func TestSerializationError(t *testing.T) {
	cause := fmt.Errorf("unexpected EOF")
	err := NewSerialization("parse", cause)

	if got, want := err.Error(), "fragment parse failed: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrSerialization) {
		t.Error("SerializationError should match ErrSerialization")
	}
	if !errors.Is(err, cause) {
		t.Error("SerializationError should unwrap to its cause")
	}

	wrapped := Wrap(err, "apply")
	if !Is(wrapped, ErrSerialization) {
		t.Error("wrapped SerializationError should still match ErrSerialization")
	}
}

func TestConflictError(t *testing.T) {
	err := NewConflict("paragraph", "00AA", "fragment changed since patch")
	if got, want := err.Error(), "paragraph 00AA conflict: fragment changed since patch"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("ConflictError should match ErrConflict")
	}
}

func TestValidationAndParseErrors(t *testing.T) {
	v := NewValidation("paraID", "must not be empty")
	if got, want := v.Error(), "validation failed for paraID: must not be empty"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(v, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}

	p := NewParse("script", "edits.txt", "unexpected token")
	if got, want := p.Error(), "failed to parse script at edits.txt: unexpected token"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(p, ErrInvalidInput) {
		t.Error("ParseError should match ErrInvalidInput")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrNotFound, "paragraph %s", "00AA")
	if got, want := err.Error(), "paragraph 00AA: not found"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}

	var nf *NotFoundError
	if As(Wrap(NewNotFound("paragraph", "x"), "locate"), &nf) {
		if nf.ID != "x" {
			t.Errorf("As() ID = %q, want %q", nf.ID, "x")
		}
	} else {
		t.Error("As() should find NotFoundError")
	}
}
