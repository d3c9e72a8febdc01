package tunnel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{"https preferred", 200, `{"tunnels":[{"public_url":"http://a.ngrok.io","proto":"http"},{"public_url":"https://a.ngrok.io","proto":"https"}]}`, "https://a.ngrok.io", nil},
		{"first otherwise", 200, `{"tunnels":[{"public_url":"http://b.ngrok.io","proto":"http"}]}`, "http://b.ngrok.io", nil},
		{"empty", 200, `{"tunnels":[]}`, "", ErrNoTunnel},
		{"agent error", 502, ``, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := PublicURL(context.Background(), srv.Client(), srv.URL)
			if tt.status != 200 {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("PublicURL() = %q, %v", got, err)
			}
		})
	}
}
