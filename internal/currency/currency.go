// Package currency converts between a fixed set of currencies using the
// National Bank of Ukraine exchange feed.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultFeedURL = "https://bank.gov.ua/NBUStatService/v1/statdirectory/exchange?json"

var ErrUnsupported = errors.New("Непідтримувана валюта")

// Currency is a supported currency with its display attributes.
type Currency struct {
	Code string
	Flag string
	Name string
}

// Supported lists the currencies in display order.
var Supported = []Currency{
	{"USD", "🇺🇸", "Долар США"},
	{"EUR", "🇪🇺", "Євро"},
	{"UAH", "🇺🇦", "Гривня"},
	{"GBP", "🇬🇧", "Фунт стерлінгів"},
	{"PLN", "🇵🇱", "Злотий"},
	{"CZK", "🇨🇿", "Чеська крона"},
	{"JPY", "🇯🇵", "Єна"},
	{"CNY", "🇨🇳", "Юань"},
	{"TRY", "🇹🇷", "Турецька ліра"},
	{"EGP", "🇪🇬", "Єгипетський фунт"},
}

// backupRates are hryvnia per unit, used when the feed is unreachable.
var backupRates = map[string]float64{
	"UAH": 1,
	"USD": 39.5,
	"EUR": 43.17,
	"GBP": 50.51,
	"PLN": 10.0,
	"CZK": 1.72,
	"JPY": 0.263,
	"CNY": 5.49,
	"TRY": 1.23,
	"EGP": 1.27,
}

func lookup(code string) (Currency, bool) {
	for _, c := range Supported {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// IsSupported reports whether code is one of the supported currencies.
func IsSupported(code string) bool {
	_, ok := lookup(strings.ToUpper(code))
	return ok
}

// Conversion is the outcome of one Convert call.
type Conversion struct {
	Amount float64
	From   string
	To     string
	Result float64
	Rate   float64
	Date   time.Time
}

// Converter holds the latest hryvnia-per-unit rates.
type Converter struct {
	http    *http.Client
	feedURL string
	log     *logrus.Entry
	now     func() time.Time

	mu      sync.RWMutex
	rates   map[string]float64
	updated time.Time
	backup  bool
}

// NewConverter starts with backup rates until the first Refresh succeeds.
func NewConverter(feedURL string, log *logrus.Entry) *Converter {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	c := &Converter{
		http:    &http.Client{Timeout: 10 * time.Second},
		feedURL: feedURL,
		log:     log,
		now:     time.Now,
	}
	c.useBackup()
	return c
}

type feedItem struct {
	Code string  `json:"cc"`
	Rate float64 `json:"rate"`
}

// Refresh pulls rates from the feed. On failure the backup rates are installed and the error returned.
func (c *Converter) Refresh(ctx context.Context) error {
	rates, err := c.fetch(ctx)
	if err != nil {
		c.log.WithError(err).Warn("exchange feed unavailable, using backup rates")
		c.useBackup()
		return err
	}
	c.mu.Lock()
	c.rates = rates
	c.updated = c.now()
	c.backup = false
	c.mu.Unlock()
	c.log.WithField("currencies", len(rates)).Info("exchange rates updated")
	return nil
}

func (c *Converter) fetch(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange feed returned %d", resp.StatusCode)
	}
	var items []feedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode exchange feed: %w", err)
	}

	rates := map[string]float64{"UAH": 1}
	for _, item := range items {
		if _, ok := lookup(item.Code); ok && item.Rate > 0 {
			rates[item.Code] = item.Rate
		}
	}
	if len(rates) == 1 {
		return nil, errors.New("exchange feed has no supported currencies")
	}
	return rates, nil
}

func (c *Converter) useBackup() {
	rates := make(map[string]float64, len(backupRates))
	for k, v := range backupRates {
		rates[k] = v
	}
	c.mu.Lock()
	c.rates = rates
	c.updated = c.now()
	c.backup = true
	c.mu.Unlock()
}

// UsingBackup reports whether the current rates are the built-in fallback.
func (c *Converter) UsingBackup() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backup
}

// Convert turns amount of from into to via hryvnia.
func (c *Converter) Convert(amount float64, from, to string) (Conversion, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	c.mu.RLock()
	fromRate, okFrom := c.rates[from]
	toRate, okTo := c.rates[to]
	updated := c.updated
	c.mu.RUnlock()
	if !okFrom || !okTo {
		return Conversion{}, ErrUnsupported
	}
	return Conversion{
		Amount: amount,
		From:   from,
		To:     to,
		Result: amount * fromRate / toRate,
		Rate:   fromRate / toRate,
		Date:   updated,
	}, nil
}

// Table lists what amount of base buys in every other known currency.
func (c *Converter) Table(base string, amount float64) (string, error) {
	base = strings.ToUpper(base)
	c.mu.RLock()
	defer c.mu.RUnlock()
	baseRate, ok := c.rates[base]
	if !ok {
		return "", ErrUnsupported
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Курси обміну для %s %s:\n\n", formatPlain(amount), base)
	for _, cur := range Supported {
		rate, ok := c.rates[cur.Code]
		if !ok || cur.Code == base {
			continue
		}
		value := amount * baseRate / rate
		fmt.Fprintf(&b, "%s %s: %s\n", cur.Flag, cur.Code, formatRate(value))
	}
	fmt.Fprintf(&b, "\n📅 Останнє оновлення: %s", c.updated.Format("02.01.2006 15:04"))
	if c.backup {
		b.WriteString("\n⚠️ Використовуються резервні курси")
	} else {
		b.WriteString("\n💡 Курси від Національного банку України")
	}
	return b.String(), nil
}

// Format renders a conversion for the chat.
func Format(conv Conversion) string {
	from, _ := lookup(conv.From)
	to, _ := lookup(conv.To)
	date := "Невідомо"
	if !conv.Date.IsZero() {
		date = conv.Date.Format("02.01.2006")
	}
	return fmt.Sprintf("💱 <b>Результат конвертації</b>\n\n%s %s %s\n⬇️\n%s %s %s\n\n📈 1 %s = %.4f %s\n📉 1 %s = %.4f %s\n📅 %s",
		from.Flag, formatAmount(conv.Amount), conv.From,
		to.Flag, formatAmount(conv.Result), conv.To,
		conv.From, conv.Rate, conv.To,
		conv.To, 1/conv.Rate, conv.From,
		date)
}

// ParseRequest reads "<amount> <FROM> <TO>", accepting a decimal comma.
func ParseRequest(text string) (amount float64, from, to string, err error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return 0, "", "", errors.New("Формат: 100 USD UAH")
	}
	amount, err = strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil || amount <= 0 {
		return 0, "", "", errors.New("Сума має бути додатним числом")
	}
	from, to = strings.ToUpper(fields[1]), strings.ToUpper(fields[2])
	if !IsSupported(from) || !IsSupported(to) {
		return 0, "", "", ErrUnsupported
	}
	return amount, from, to, nil
}

// Codes returns the supported codes sorted alphabetically.
func Codes() []string {
	codes := make([]string, 0, len(Supported))
	for _, c := range Supported {
		codes = append(codes, c.Code)
	}
	sort.Strings(codes)
	return codes
}

func formatAmount(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case v >= 1000:
		return fmt.Sprintf("%.2fK", v/1000)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func formatRate(v float64) string {
	if v >= 1 {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.4f", v)
}

func formatPlain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
