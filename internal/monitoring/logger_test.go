package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})

	Logf("hello %d", 42)
	if len(got) != 1 || got[0] != "hello 42" {
		t.Errorf("captured logs = %v, want [hello 42]", got)
	}

	// nil installs a no-op logger rather than panicking
	SetLogger(nil)
	Logf("dropped")
	if len(got) != 1 {
		t.Errorf("no-op logger still captured output: %v", got)
	}
}

func TestVerbosef(t *testing.T) {
	defer SetLogger(nil)
	defer func() { Verbose = false }()

	var count int
	SetLogger(func(format string, v ...interface{}) { count++ })

	Verbose = false
	Verbosef("quiet")
	Verbose = true
	Verbosef("loud")

	if count != 1 {
		t.Errorf("Verbosef emitted %d lines, want 1", count)
	}
}
