package quaydev

import (
	"testing"
)

func TestParseEnvVars(t *testing.T) {
	got, err := parseEnvVars([]string{"TEST=true", "URI=db://a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "TEST=true" || got[1] != "URI=db://a=b" {
		t.Errorf("unexpected passthrough: %v", got)
	}

	for _, bad := range []string{"NOVALUE", "=VALUE", "="} {
		if _, err := parseEnvVars([]string{bad}); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
