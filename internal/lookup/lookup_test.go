package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"plannerbot/internal/logger"
)

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWeather(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"ok", 200, `{"current_weather":{"temperature":12.5,"windspeed":7}}`, "☀️ Температура: 12.5 ℃, Вітер: 7 км/год"},
		{"server error", 500, `{}`, WeatherUnavailable},
		{"missing block", 200, `{"hourly":{}}`, WeatherUnavailable},
		{"bad json", 200, `not json`, WeatherUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			c := NewClient(srv.URL, "", logger.Discard())
			if got := c.Weather(context.Background()); got != tt.want {
				t.Errorf("Weather() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRates(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"ok", 200, `{"rates":{"UAH":41.25,"EUR":0.92,"GBP":0.8}}`, "USD → UAH: 41.25\nUSD → EUR: 0.92"},
		{"not found", 404, ``, RatesUnavailable},
		{"partial", 200, `{"rates":{"UAH":41.25}}`, RatesUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			c := NewClient("", srv.URL, logger.Discard())
			if got := c.Rates(context.Background()); got != tt.want {
				t.Errorf("Rates() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnreachable(t *testing.T) {
	srv := newServer(t, 200, `{}`)
	url := srv.URL
	srv.Close()

	c := NewClient(url, url, logger.Discard())
	if got := c.Weather(context.Background()); got != WeatherUnavailable {
		t.Errorf("Weather() = %q", got)
	}
	if got := c.Rates(context.Background()); got != RatesUnavailable {
		t.Errorf("Rates() = %q", got)
	}
}
