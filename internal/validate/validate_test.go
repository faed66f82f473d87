package validate

import "testing"

func TestEmail(t *testing.T) {
	got, err := Email("  Ben.Datsko@UMICH.edu ")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got != "ben.datsko@umich.edu" {
		t.Fatalf("got=%q", got)
	}

	for _, bad := range []string{"", "nope", "a@b", "two@@umich.edu", "spaces in@umich.edu"} {
		if _, err := Email(bad); err == nil {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}

func TestJobType(t *testing.T) {
	for _, good := range []string{"3sat", "ldpc", "ksat"} {
		if err := JobType(good); err != nil {
			t.Fatalf("%q: %v", good, err)
		}
	}
	if err := JobType("2sat"); err == nil {
		t.Fatalf("unknown type should be rejected")
	}
}
