package version

import "testing"

func TestGet(t *testing.T) {
	if Get() == "" {
		t.Fatal("Get() returned empty version")
	}

	old := Override
	t.Cleanup(func() { Override = old })

	Override = " v9.9.9\n"
	if got := Get(); got != "9.9.9" {
		t.Errorf("Get() with override = %q, want 9.9.9", got)
	}
}
