// Package backend — клиент REST API OpenConnect.
//
// Все методы возвращают либо документированную структуру, либо *apperr.Error:
// вызывающему коду не нужно разбирать HTTP-статусы или форму тела ошибки.
// Bearer-токен подставляется транспортом из TokenSource.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/metrics"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

const maxBodySize = 1 << 20

// TokenSource отдаёт сохранённый токен сессии.
type TokenSource interface {
	Load(ctx context.Context) (models.Credential, error)
}

// Client — клиент backend. Безопасен для конкурентного использования.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retries    uint64
	newBackOff func() backoff.BackOff
	tokens     TokenSource
	log        *slog.Logger
}

// New создаёт клиент по настройкам backend.
func New(cfg config.Backend, log *slog.Logger) *Client {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	st := gobreaker.Settings{
		Name:    "backend",
		Timeout: cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		// только сбои транспорта и 5xx говорят о недоступности backend
		IsSuccessful: func(err error) bool {
			return err == nil || !apperr.Is(err, apperr.KindNetwork)
		},
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.TimeoutBackend},
		breaker:    gobreaker.NewCircuitBreaker(st),
		retries:    cfg.Retries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		log: log,
	}
}

// WithTokenSource возвращает копию клиента, которая подписывает
// авторизованные запросы токеном из src. HTTP-клиент и circuit breaker общие.
func (c *Client) WithTokenSource(src TokenSource) *Client {
	cp := *c
	cp.tokens = src
	return &cp
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// auth — запрос требует bearer-токена
	auth bool
}

// do выполняет запрос через circuit breaker. Идемпотентные GET-запросы
// повторяются с экспоненциальной задержкой при сетевых сбоях.
func (c *Client) do(ctx context.Context, op string, req request, out any) error {
	start := time.Now()
	attempt := func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.roundTrip(ctx, req, out)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperr.Network("service is temporarily unavailable, please try again", err)
		}
		return err
	}

	var err error
	if req.method == http.MethodGet && c.retries > 0 {
		bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.retries), ctx)
		err = backoff.Retry(func() error {
			err := attempt()
			if err != nil && !apperr.Is(err, apperr.KindNetwork) {
				return backoff.Permanent(err)
			}
			return err
		}, bo)
	} else {
		err = attempt()
	}

	metrics.ObserveBackendRequest(op, err, time.Since(start))
	if err != nil {
		appErr := apperr.From(err)
		c.log.Debug("backend request failed",
			sl.Op(op),
			slog.String("kind", string(appErr.Kind)),
			sl.Err(err),
		)
		return appErr
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request, out any) error {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var buf bytes.Buffer
	if req.body != nil {
		if err := json.NewEncoder(&buf).Encode(req.body); err != nil {
			return apperr.Network("failed to encode request", err)
		}
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, &buf)
	if err != nil {
		return apperr.Network("failed to build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.auth {
		if c.tokens == nil {
			return apperr.Session("you are not signed in")
		}
		cred, err := c.tokens.Load(ctx)
		if err != nil {
			return apperr.Session("you are not signed in")
		}
		httpReq.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apperr.Network("backend is unreachable, please try again", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return apperr.Network("failed to read backend response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return normalize(resp.StatusCode, body, req.auth)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Network("unexpected response from backend", err)
	}
	return nil
}

// errorBody покрывает все формы ошибок backend: {"error": "..."},
// {"error": {"email": "..." | [...]}}, {"message": "..."}, {"errors": {...}}.
type errorBody struct {
	Message string                     `json:"message"`
	Error   json.RawMessage            `json:"error"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

// normalize строит *apperr.Error по статусу и телу ответа.
func normalize(status int, body []byte, authenticated bool) *apperr.Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	msg := strings.TrimSpace(eb.Message)
	fields := map[string][]string{}
	if len(eb.Error) > 0 {
		var s string
		var obj map[string]json.RawMessage
		switch {
		case json.Unmarshal(eb.Error, &s) == nil:
			if msg == "" {
				msg = s
			}
		case json.Unmarshal(eb.Error, &obj) == nil:
			collectFields(fields, obj)
		}
	}
	collectFields(fields, eb.Errors)
	if len(fields) == 0 {
		fields = nil
	}

	switch {
	case status == http.StatusUnauthorized && authenticated:
		return apperr.Session("your session has expired, please sign in again")
	case status == http.StatusUnauthorized, status == http.StatusForbidden && !authenticated:
		return apperr.Auth(orDefault(msg, "invalid credentials"))
	case status == http.StatusForbidden:
		return apperr.Auth(orDefault(msg, "you do not have access to this resource"))
	case status == http.StatusNotFound && !authenticated:
		return apperr.Auth(orDefault(msg, "the link is invalid or has expired"))
	case status == http.StatusNotFound:
		return apperr.Validation(orDefault(msg, "not found"), fields)
	case status == http.StatusTooManyRequests:
		return apperr.Network("too many requests, please try again later", nil)
	case status >= 500:
		return apperr.Network("something went wrong, please try again", fmt.Errorf("backend status %d", status))
	default:
		return apperr.Validation(orDefault(msg, "invalid input"), fields)
	}
}

func collectFields(dst map[string][]string, src map[string]json.RawMessage) {
	for field, raw := range src {
		var one string
		var many []string
		switch {
		case json.Unmarshal(raw, &one) == nil:
			dst[field] = append(dst[field], one)
		case json.Unmarshal(raw, &many) == nil:
			dst[field] = append(dst[field], many...)
		}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
