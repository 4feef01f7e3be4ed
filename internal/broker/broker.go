// Package broker carries service actions over NATS request/reply. Requests
// and replies are JSON; replies are wrapped in an envelope so handler errors
// reach the caller.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/repository"
)

// DefaultTimeout bounds requests whose context has no deadline, and every
// handler invocation.
const DefaultTimeout = 5 * time.Second

// Error codes carried by RemoteError.
const (
	CodeBadRequest = "bad_request"
	CodeValidation = "validation"
	CodeInternal   = "internal"
)

// RemoteError is a failure reported by the handler on the other side.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Code, e.Message)
}

// Is lets validation failures match repository.ErrValidation across the wire.
func (e *RemoteError) Is(target error) bool {
	return e.Code == CodeValidation && target == repository.ErrValidation
}

type envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *RemoteError    `json:"error,omitempty"`
}

// Remote is what services need from the broker to talk to each other.
type Remote interface {
	Request(ctx context.Context, subject string, req, resp any) error
	RemoteGet(ctx context.Context, service, id string) (json.RawMessage, bool, error)
}

// Interface assertion to ensure Client implements Remote
var _ Remote = (*Client)(nil)

// Client sends requests and serves handlers on one NATS connection.
type Client struct {
	nc      *nats.Conn
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New wraps an established connection.
func New(nc *nats.Conn, opts ...Option) *Client {
	c := &Client{nc: nc, timeout: DefaultTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials url and wraps the connection.
func Connect(url, name string, opts ...Option) (*Client, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return New(nc, opts...), nil
}

// Conn returns the underlying connection.
func (c *Client) Conn() *nats.Conn {
	return c.nc
}

// Close drains subscriptions and closes the connection.
func (c *Client) Close() error {
	return c.nc.Drain()
}

// Request sends req to subject and decodes the reply data into resp, which
// must be a pointer or nil. A handler error comes back as *RemoteError.
func (c *Client) Request(ctx context.Context, subject string, req, resp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", subject, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return fmt.Errorf("decode %s reply: %w", subject, err)
	}
	if env.Error != nil {
		return env.Error
	}
	if resp == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, resp); err != nil {
		return fmt.Errorf("decode %s reply: %w", subject, err)
	}
	return nil
}

// IDRequest is the payload of every "<service>.get" action.
type IDRequest struct {
	ID string `json:"id"`
}

// RemoteGet fetches one entity from service's get action. ok is false when
// the remote service has no entity with that id.
func (c *Client) RemoteGet(ctx context.Context, service, id string) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	if err := c.Request(ctx, Subject(service, "get"), IDRequest{ID: id}, &raw); err != nil {
		return nil, false, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	return raw, true, nil
}

// Subject joins a service name and an action.
func Subject(service, action string) string {
	return service + "." + action
}

// Handle serves subject with h. Instances of the same service share a queue
// group named after the first subject token, so each request is handled once.
func Handle[Req, Resp any](c *Client, subject string, h func(context.Context, Req) (Resp, error)) (*nats.Subscription, error) {
	queue, _, _ := strings.Cut(subject, ".")
	return c.nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		reply := c.serve(subject, msg.Data, func(ctx context.Context, data []byte) (any, error) {
			var req Req
			if len(data) > 0 {
				if err := json.Unmarshal(data, &req); err != nil {
					return nil, &RemoteError{Code: CodeBadRequest, Message: err.Error()}
				}
			}
			return h(ctx, req)
		})
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.Warn("broker reply failed", zap.String("subject", subject), zap.Error(err))
		}
	})
}

func (c *Client) serve(subject string, data []byte, h func(context.Context, []byte) (any, error)) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var env envelope
	out, err := h(ctx, data)
	if err == nil {
		env.Data, err = json.Marshal(out)
	}
	if err != nil {
		env = envelope{Error: toRemote(err)}
		c.logger.Warn("broker handler failed",
			zap.String("subject", subject),
			zap.String("code", env.Error.Code),
			zap.Error(err),
		)
	}

	reply, err := json.Marshal(env)
	if err != nil {
		reply = []byte(`{"error":{"code":"internal","message":"encode reply"}}`)
	}
	return reply
}

func toRemote(err error) *RemoteError {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote
	}
	if errors.Is(err, repository.ErrValidation) {
		return &RemoteError{Code: CodeValidation, Message: err.Error()}
	}
	return &RemoteError{Code: CodeInternal, Message: err.Error()}
}

// Actions registers the handlers of one service and keeps the first error.
type Actions struct {
	client  *Client
	service string
	subs    []*nats.Subscription
	err     error
}

func NewActions(c *Client, service string) *Actions {
	return &Actions{client: c, service: service}
}

// On serves "<service>.<action>" with h.
func On[Req, Resp any](a *Actions, action string, h func(context.Context, Req) (Resp, error)) {
	if a.err != nil {
		return
	}
	sub, err := Handle(a.client, Subject(a.service, action), h)
	if err != nil {
		a.err = fmt.Errorf("register %s: %w", Subject(a.service, action), err)
		return
	}
	a.subs = append(a.subs, sub)
}

// Err returns the first registration error.
func (a *Actions) Err() error {
	return a.err
}

// Unsubscribe removes every registered handler.
func (a *Actions) Unsubscribe() error {
	var errs []error
	for _, sub := range a.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	a.subs = nil
	return errors.Join(errs...)
}
