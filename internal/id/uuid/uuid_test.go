package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique version 4 UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	for _, id := range []string{id1, id2} {
		if len(id) != 36 {
			t.Fatalf("expected 36 characters, got %d in %s", len(id), id)
		}
		parsed, err := goUUID.Parse(id)
		if err != nil {
			t.Fatalf("%s not valid UUID: %v", id, err)
		}
		if parsed.Version() != 4 {
			t.Fatalf("expected version 4, got %d", parsed.Version())
		}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{in: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", want: true},
		{in: "6ba7b8109dad11d180b400c04fd430c8", want: false},
		{in: "urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8", want: false},
		{in: "not-a-uuid", want: false},
		{in: "", want: false},
	}
	for _, tc := range cases {
		if got := Valid(tc.in); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
