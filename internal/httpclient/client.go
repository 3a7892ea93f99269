package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures a Client. A zero Interval disables rate limiting.
type Options struct {
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	Interval     time.Duration
	UserAgent    string
	Headers      map[string]string
}

// Client is a resty client that classifies failures as apperr errors.
// It is safe for concurrent use.
type Client struct {
	http *resty.Client
}

func New(opts Options) *Client {
	client := resty.New()
	client.SetLogger(restyLogger{log: logger.For("httpclient")})
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	client.SetHeader("user-agent", ua)
	client.SetHeaders(opts.Headers)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	client.SetRetryCount(opts.RetryCount)
	if opts.RetryWait > 0 {
		client.SetRetryWaitTime(opts.RetryWait)
	}
	if opts.RetryMaxWait > 0 {
		client.SetRetryMaxWaitTime(opts.RetryMaxWait)
	}
	client.AddRetryCondition(shouldRetry)

	if opts.Interval > 0 {
		limiter := rate.NewLimiter(rate.Every(opts.Interval), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	return &Client{http: client}
}

// shouldRetry retries transport failures (timeouts included), 429 and 5xx. Other 4xx
// responses are final, and nothing is retried once the caller's context is done.
func shouldRetry(res *resty.Response, err error) bool {
	if res != nil && res.Request != nil && res.Request.Context().Err() != nil {
		return false
	}
	if err != nil {
		return true
	}
	if res == nil {
		return false
	}
	code := res.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// restyLogger routes resty's retry and debug messages to zerolog.
type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) { l.log.Error().Msgf(format, v...) }
func (l restyLogger) Warnf(format string, v ...any)  { l.log.Warn().Msgf(format, v...) }
func (l restyLogger) Debugf(format string, v ...any) { l.log.Debug().Msgf(format, v...) }

// Resty exposes the underlying client for callers that need custom requests.
func (c *Client) Resty() *resty.Client {
	return c.http
}

// GetJSON issues a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, source, url string, query map[string]string, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		SetQueryParams(query).
		Get(url)
	return decodeJSON(source, url, res, err, out)
}

// PostJSON sends body as JSON and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, source, url string, body, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		SetHeader("content-type", "application/json").
		SetBody(body).
		Post(url)
	return decodeJSON(source, url, res, err, out)
}

// GetHTML fetches a page, converts it to UTF-8 and parses it.
func (c *Client) GetHTML(ctx context.Context, source, url string) (*goquery.Document, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("accept", "text/html").
		Get(url)
	body, err := checkResponse(source, url, res, err)
	if err != nil {
		return nil, err
	}

	r, err := DecodeHTML(body, res.Header().Get("Content-Type"))
	if err != nil {
		return nil, apperr.Parse(source, "failed to decode page", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, apperr.Parse(source, "failed to parse page", err)
	}
	return doc, nil
}

func checkResponse(source, url string, res *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, apperr.Fetch(source, fmt.Sprintf("request to %s failed", url), err)
	}
	if res.IsError() || res.StatusCode() < 200 || res.StatusCode() > 299 {
		return nil, apperr.HTTPStatus(source, res.StatusCode(), url)
	}
	return res.Body(), nil
}

func decodeJSON(source, url string, res *resty.Response, err error, out any) error {
	body, err := checkResponse(source, url, res, err)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Parse(source, "failed to decode response", err)
	}
	return nil
}

// DecodeHTML returns body as UTF-8, detecting the encoding from the content type and the document.
func DecodeHTML(body []byte, contentType string) (io.Reader, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(body), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, enc.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return nil, fmt.Errorf("httpclient: failed to convert %s body: %w", name, err)
	}
	return &buf, nil
}
