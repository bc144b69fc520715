package cbr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/goal-service/internal/config"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// BaseCurrency is the currency CBR quotes every rate against
const BaseCurrency = "RUB"

// ratesTTL bounds how long a daily quote is reused before refetching
const ratesTTL = time.Hour

// Rates holds one day of CBR quotes, in rubles per single unit of currency
type Rates struct {
	Date   time.Time          `json:"date"`
	PerRUB map[string]float64 `json:"rates"`
}

// Rate returns how many rubles one unit of the currency is worth
func (r *Rates) Rate(currency string) (float64, bool) {
	currency = strings.ToUpper(currency)
	if currency == BaseCurrency {
		return 1, true
	}
	v, ok := r.PerRUB[currency]
	return v, ok
}

// Convert converts an amount between two quoted currencies through the ruble
func (r *Rates) Convert(amount float64, from, to string) (float64, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	fromRate, ok := r.Rate(from)
	if !ok {
		return 0, fmt.Errorf("no CBR rate for %s", from)
	}
	toRate, ok := r.Rate(to)
	if !ok {
		return 0, fmt.Errorf("no CBR rate for %s", to)
	}
	return amount * fromRate / toRate, nil
}

// CBRClient handles integration with Central Bank of Russia
type CBRClient struct {
	url    string
	client *http.Client
	log    *logrus.Logger

	mu        sync.Mutex
	cached    *Rates
	fetchedAt time.Time
	now       func() time.Time

	refreshes singleflight.Group
}

// NewCBRClient initializes a new CBR client
func NewCBRClient(cfg *config.Config, log *logrus.Logger) *CBRClient {
	return &CBRClient{
		url: cfg.CBRURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
		now: time.Now,
	}
}

// sendRequest fetches the daily quotes document
func (c *CBRClient) sendRequest(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("CBR XML response: %d bytes", len(body))
	return body, nil
}

// parseXMLResponse extracts per-unit ruble rates from a ValCurs document
func parseXMLResponse(rawBody []byte) (*Rates, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	root := doc.SelectElement("ValCurs")
	if root == nil {
		return nil, fmt.Errorf("ValCurs element not found in XML")
	}

	rates := &Rates{PerRUB: make(map[string]float64)}
	if date := root.SelectAttrValue("Date", ""); date != "" {
		parsed, err := time.Parse("02.01.2006", date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date %q: %w", date, err)
		}
		rates.Date = parsed
	}

	for _, valute := range root.SelectElements("Valute") {
		code := valute.FindElement("./CharCode")
		value := valute.FindElement("./Value")
		if code == nil || value == nil {
			continue
		}
		nominal := 1.0
		if n := valute.FindElement("./Nominal"); n != nil {
			parsed, err := parseDecimal(n.Text())
			if err != nil || parsed <= 0 {
				return nil, fmt.Errorf("invalid nominal for %s: %q", code.Text(), n.Text())
			}
			nominal = parsed
		}
		v, err := parseDecimal(value.Text())
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", code.Text(), err)
		}
		rates.PerRUB[strings.ToUpper(strings.TrimSpace(code.Text()))] = v / nominal
	}

	if len(rates.PerRUB) == 0 {
		return nil, fmt.Errorf("no currency rates found in XML")
	}
	return rates, nil
}

// parseDecimal accepts the comma decimal separator CBR uses
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

// GetRates returns the latest daily quotes, reusing a recent fetch. Concurrent
// callers share one refresh, and a failed refresh serves the previous quotes.
func (c *CBRClient) GetRates(ctx context.Context) (*Rates, error) {
	if rates, fresh := c.current(); fresh {
		return rates, nil
	}
	v, err, _ := c.refreshes.Do("daily", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Rates), nil
}

func (c *CBRClient) current() (*Rates, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached, c.cached != nil && c.now().Sub(c.fetchedAt) < ratesTTL
}

func (c *CBRClient) refresh(ctx context.Context) (*Rates, error) {
	rates, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.cached != nil {
			c.log.Warnf("CBR refresh failed, serving rates from %s: %v", c.fetchedAt.Format(time.RFC3339), err)
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = rates
	c.fetchedAt = c.now()
	c.log.Infof("Retrieved %d CBR exchange rates for %s", len(rates.PerRUB), rates.Date.Format("2006-01-02"))
	return rates, nil
}

func (c *CBRClient) fetch(ctx context.Context) (*Rates, error) {
	body, err := c.sendRequest(ctx)
	if err != nil {
		return nil, err
	}
	return parseXMLResponse(body)
}
