package util

import "testing"

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain utf8", input: "ACME Corp", want: "ACME Corp"},
		{name: "contains null byte", input: "AC\x00ME", want: "ACME"},
		{name: "contains invalid utf8", input: string([]byte{'a', 0xff, 'b'}), want: "ab"},
		{name: "multibyte kept", input: "Zürich, ZH", want: "Zürich, ZH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePostgresText(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected sanitized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizePostgresJSON(t *testing.T) {
	got := string(SanitizePostgresJSON([]byte(`{"name":"AC\u0000ME"}`)))
	if got != `{"name":"ACME"}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}
