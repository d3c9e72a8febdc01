// Package lookup fetches the weather and exchange-rate snippets shown in the bot menu.
// Failures are logged and replaced by a user-facing fallback string.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultWeatherURL = "https://api.open-meteo.com/v1/forecast?latitude=50.45&longitude=30.52&current_weather=true"
	DefaultRatesURL   = "https://api.exchangerate.host/latest?base=USD"

	WeatherUnavailable = "Не вдалося отримати погоду."
	RatesUnavailable   = "Не вдалося отримати курс валют."
)

// Client queries the weather and rates endpoints.
type Client struct {
	http       *http.Client
	weatherURL string
	ratesURL   string
	log        *logrus.Entry
}

// NewClient builds a Client; empty URLs fall back to the public endpoints.
func NewClient(weatherURL, ratesURL string, log *logrus.Entry) *Client {
	if weatherURL == "" {
		weatherURL = DefaultWeatherURL
	}
	if ratesURL == "" {
		ratesURL = DefaultRatesURL
	}
	return &Client{
		http:       &http.Client{Timeout: 5 * time.Second},
		weatherURL: weatherURL,
		ratesURL:   ratesURL,
		log:        log,
	}
}

// Weather returns current Kyiv temperature and wind speed.
func (c *Client) Weather(ctx context.Context) string {
	var body struct {
		CurrentWeather *struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
		} `json:"current_weather"`
	}
	if err := c.getJSON(ctx, c.weatherURL, &body); err != nil {
		c.log.WithError(err).Error("weather lookup failed")
		return WeatherUnavailable
	}
	if body.CurrentWeather == nil {
		c.log.Error("weather lookup: no current_weather in response")
		return WeatherUnavailable
	}
	return fmt.Sprintf("☀️ Температура: %s ℃, Вітер: %s км/год",
		formatNumber(body.CurrentWeather.Temperature), formatNumber(body.CurrentWeather.WindSpeed))
}

// Rates returns USD to UAH and EUR rates.
func (c *Client) Rates(ctx context.Context) string {
	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := c.getJSON(ctx, c.ratesURL, &body); err != nil {
		c.log.WithError(err).Error("rates lookup failed")
		return RatesUnavailable
	}
	uah, okUAH := body.Rates["UAH"]
	eur, okEUR := body.Rates["EUR"]
	if !okUAH || !okEUR {
		c.log.Error("rates lookup: UAH or EUR missing from response")
		return RatesUnavailable
	}
	return fmt.Sprintf("USD → UAH: %s\nUSD → EUR: %s", formatNumber(uah), formatNumber(eur))
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
