package atlas_test

import (
	"testing"

	"synnergy-registrar/internal/atlas"
)

func TestNormalizeHostPortBareHostPort(t *testing.T) {
	got := atlas.NormalizeHostPort("127.0.0.1:6264")
	if got != "127.0.0.1:6264" {
		t.Fatalf("got %s", got)
	}
}

func TestNormalizeHostPortURL(t *testing.T) {
	got := atlas.NormalizeHostPort("http://atlas.synnergy.network:6264/")
	if got != "atlas.synnergy.network:6264" {
		t.Fatalf("got %s", got)
	}
}

func TestNormalizeHostPortUnparseable(t *testing.T) {
	got := atlas.NormalizeHostPort("not a valid anything")
	if got != "not a valid anything" {
		t.Fatalf("got %s", got)
	}
}

func TestNormalizeHostPortTrimsWhitespace(t *testing.T) {
	got := atlas.NormalizeHostPort("  127.0.0.1:6264  ")
	if got != "127.0.0.1:6264" {
		t.Fatalf("got %s", got)
	}
}
