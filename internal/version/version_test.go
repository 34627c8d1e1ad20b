package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if v == "" {
		t.Fatal("Get() returned empty version")
	}
	if strings.TrimSpace(v) != v {
		t.Errorf("Get() = %q, want trimmed", v)
	}
}

func TestInfo(t *testing.T) {
	got := Info("switchboard")
	if !strings.HasPrefix(got, "switchboard version "+Get()) {
		t.Errorf("Info() = %q", got)
	}
}
