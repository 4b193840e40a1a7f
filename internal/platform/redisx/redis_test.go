package redisx

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Open("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()
}

func TestOpenInvalidURL(t *testing.T) {
	if _, err := Open("not-a-url"); err == nil {
		t.Fatalf("expected an error")
	}
}
