package nightscout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
)

// EntriesPath is the Nightscout endpoint returning the most recent SGV
// entries, newest first.
const EntriesPath = "/api/v1/entries/sgv.json"

// maxBodyBytes caps the response read; a handful of entries is a few KB.
const maxBodyBytes = 1 << 20

// EntriesClient abstracts the Nightscout HTTP API for testability.
type EntriesClient interface {
	Entries(ctx context.Context, count int) ([]Entry, error)
}

// ClientOptions configures an HTTPClient.
type ClientOptions struct {
	// Host is the Nightscout base URL, e.g. https://my-cgm.example.
	Host string
	// Secret is the resolved plain API secret. It is hashed before use.
	Secret string
	// Timeout bounds each request. Zero uses DefaultTimeout.
	Timeout time.Duration
	// QuerySecret additionally sends the hash as a "secret" query parameter,
	// which some older Nightscout deployments require.
	QuerySecret bool
	// UserAgent is sent on every request when set.
	UserAgent string
}

// HTTPClient is the production EntriesClient.
type HTTPClient struct {
	base        *url.URL
	secretHash  string
	querySecret bool
	userAgent   string
	http        *http.Client
}

// NewHTTPClient validates the host and builds a client with a mandatory
// timeout.
func NewHTTPClient(opts ClientOptions) (*HTTPClient, error) {
	base, err := ParseHost(opts.Host)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		base:        base,
		secretHash:  cgm.HashSecret(opts.Secret),
		querySecret: opts.QuerySecret,
		userAgent:   opts.UserAgent,
		http:        &http.Client{Timeout: timeout},
	}, nil
}

// ParseHost checks that host is an absolute http(s) URL and strips any
// trailing slash so paths can be appended.
func ParseHost(host string) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, &cgm.ConfigError{Field: "host", Reason: "required"}
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, &cgm.ConfigError{Field: "host", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &cgm.ConfigError{Field: "host", Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &cgm.ConfigError{Field: "host", Reason: "missing hostname"}
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// URL returns the entries endpoint without any secret, safe for logging.
func (c *HTTPClient) URL(count int) string {
	return c.endpoint(count, false)
}

func (c *HTTPClient) endpoint(count int, withSecret bool) string {
	u := *c.base
	u.Path += EntriesPath
	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	if withSecret && c.querySecret && c.secretHash != "" {
		q.Set("secret", c.secretHash)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Entries fetches the latest count entries.
func (c *HTTPClient) Entries(ctx context.Context, count int) ([]Entry, error) {
	if count < 1 {
		count = 1
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(count, true), nil)
	if err != nil {
		return nil, &cgm.FetchError{Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.secretHash != "" {
		req.Header.Set("api-secret", c.secretHash)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &cgm.FetchError{Op: "request", Err: stripURLError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &cgm.FetchError{Op: "read", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &cgm.FetchError{Op: "status", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	return decodeEntries(body)
}

// decodeEntries parses the JSON array body. Malformed elements fail the
// whole response: a partial answer could hide the newest reading.
func decodeEntries(body []byte) ([]Entry, error) {
	var raw []map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &cgm.FetchError{Op: "decode", Err: err}
	}
	if len(raw) == 0 {
		return nil, &cgm.FetchError{Op: "decode", Err: errors.New("empty entries array")}
	}

	entries := make([]Entry, 0, len(raw))
	for i, r := range raw {
		e, err := parseEntry(r)
		if err != nil {
			return nil, &cgm.FetchError{Op: "parse", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// stripURLError drops the request URL from transport errors so a query
// secret never reaches the logs. The cause chain is preserved.
func stripURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", strings.ToLower(ue.Op), ue.Err)
	}
	return err
}
