package dberr

import "testing"

func TestNewKnownCode(t *testing.T) {
	err := New(CodeBadValue, "bad field %q", "age")
	if err.Name != "BadValue" {
		t.Fatalf("expected name BadValue, got %q", err.Name)
	}
	if err.Message != `bad field "age"` {
		t.Fatalf("unexpected message: %q", err.Message)
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New(999999, "whatever")
	if err.Name != "Error" {
		t.Fatalf("expected fallback name Error, got %q", err.Name)
	}
}

func TestErrorString(t *testing.T) {
	err := BadValue("oops")
	got := err.Error()
	want := "BadValue (code 2): oops"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDuplicateKeyMessage(t *testing.T) {
	err := DuplicateKey("email_1", "{ email: \"a@b.com\" }")
	if err.Code != CodeDuplicateKey {
		t.Fatalf("expected code %d, got %d", CodeDuplicateKey, err.Code)
	}
	if err.Name != "DuplicateKey" {
		t.Fatalf("expected name DuplicateKey, got %q", err.Name)
	}
}

func TestFailedToParse(t *testing.T) {
	err := FailedToParse("bad pipeline stage")
	if err.Code != CodeFailedToParse {
		t.Fatalf("expected code %d, got %d", CodeFailedToParse, err.Code)
	}
}
