package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "maestro "+Version+" (commit "+Commit) {
		t.Errorf("unexpected version string %q", s)
	}
}
