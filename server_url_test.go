package main

import "testing"

func TestViewerURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		address string
		want    string
	}{
		"default_port_only":    {address: ":43127", want: "ws://localhost:43127/ws"},
		"explicit_localhost":   {address: "localhost:8000", want: "ws://localhost:8000/ws"},
		"explicit_ipv4_any":    {address: "0.0.0.0:9000", want: "ws://localhost:9000/ws"},
		"explicit_ipv4_local":  {address: "127.0.0.1:43127", want: "ws://127.0.0.1:43127/ws"},
		"explicit_ipv6_any":    {address: "[::]:43127", want: "ws://localhost:43127/ws"},
		"explicit_ipv6_custom": {address: "[2001:db8::1]:43127", want: "ws://[2001:db8::1]:43127/ws"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := viewerURL(tc.address)
			if got != tc.want {
				t.Fatalf("viewerURL(%q) = %q, want %q", tc.address, got, tc.want)
			}
		})
	}
}

func TestNormaliseHostPortNoPort(t *testing.T) {
	t.Parallel()

	got := normaliseHostPort("")
	if got != "localhost" {
		t.Fatalf("expected localhost for empty address, got %q", got)
	}
}
