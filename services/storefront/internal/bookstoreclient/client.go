// Package bookstoreclient talks to the bookstore backend REST API.
package bookstoreclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const defaultTimeout = 10 * time.Second

var tracer = otel.Tracer("alexandria/storefront/bookstoreclient")

// Client calls the bookstore backend over HTTP. Writes are never retried.
type Client struct {
	http *resty.Client
}

// Option customizes a Client.
type Option func(*resty.Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *resty.Client) {
		if hc != nil && hc.Transport != nil {
			c.SetTransport(hc.Transport)
		}
	}
}

// NewClient constructs a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultTimeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

type requestOption func(*resty.Request)

func withBody(body any) requestOption {
	return func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}
}

func withPath(params map[string]string) requestOption {
	return func(r *resty.Request) { r.SetPathParams(params) }
}

func withQuery(params map[string]string) requestOption {
	return func(r *resty.Request) {
		for k, v := range params {
			if v != "" {
				r.SetQueryParam(k, v)
			}
		}
	}
}

// do sends one request and decodes the response into out. Every failure is
// returned as *Error.
func (c *Client) do(ctx context.Context, method, route string, out any, opts ...requestOption) error {
	ctx, span := tracer.Start(ctx, method+" "+route, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
	)

	req := c.http.R().SetContext(ctx)
	for _, opt := range opts {
		opt(req)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := req.Execute(method, route)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return &Error{Kind: KindTransport, Op: route, Err: err}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))
	if resp.IsError() {
		apiErr := decodeError(route, resp.StatusCode(), resp.Body())
		span.SetStatus(codes.Error, apiErr.Kind.String())
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return &Error{Kind: KindTransport, Op: route, Status: resp.StatusCode(), Detail: "unparsable response", Err: err}
	}
	return nil
}

// messageResponse is the backend's generic acknowledgement body.
type messageResponse struct {
	Message string `json:"message"`
}
