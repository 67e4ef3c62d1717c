// Package client ties the pieces together: it submits built requests
// through a transport, dispatches the responses and feeds Get and Set
// results to a cache.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/jmapc/internal/cache"
	"github.com/roach88/jmapc/internal/dispatch"
	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/request"
	"github.com/roach88/jmapc/internal/shape"
	"github.com/roach88/jmapc/internal/transport"
)

// Client submits batches. It is safe for concurrent use once constructed.
type Client struct {
	transport  transport.Transport
	cache      cache.Store
	registry   *method.Registry
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache stores Get and Set results in s.
func WithCache(s cache.Store) Option {
	return func(c *Client) { c.cache = s }
}

// WithRegistry replaces method.Default.
func WithRegistry(r *method.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client that submits through t.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		registry:  method.Default,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dispatcher = dispatch.New(c.registry)
	return c
}

// NewBatch returns a Builder that resolves names with the client's registry.
func (c *Client) NewBatch(opts ...request.Option) *request.Builder {
	return request.NewBuilder(append([]request.Option{request.WithRegistry(c.registry)}, opts...)...)
}

// Do submits req and returns one result per response.
//
// A transport failure aborts the call. Per-invocation failures are in the
// results. When a cache is configured, each successful response that
// describes a delta is applied; a cache failure is recorded in that
// result's CacheErr and the response is kept.
func (c *Client) Do(ctx context.Context, req *request.Request) (dispatch.Results, error) {
	env, err := c.transport.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	results := c.dispatcher.DispatchEnvelope(req, env)
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			c.logger.Debug("invocation failed",
				"client_id", res.ClientID,
				"method", res.Name,
				"error", res.Err,
			)
			continue
		}
		c.logger.Debug("invocation succeeded", "client_id", res.ClientID, "method", res.Name)

		if c.cache != nil {
			res.CacheErr = c.record(ctx, req, res)
		}
	}
	return results, nil
}

// record applies the delta a successful response describes. Responses that
// need the sent arguments (set patches) get them from the invocation with
// the same client id and method.
func (c *Client) record(ctx context.Context, req *request.Request, res *dispatch.Result) error {
	src, ok := res.Response.(shape.DeltaSource)
	if !ok {
		return nil
	}
	d, err := src.Delta()
	if rs, ok := res.Response.(shape.RequestDeltaSource); ok {
		if inv, found := req.Invocation(res.ClientID); found && inv.Name() == res.Name {
			d, err = rs.DeltaFor(inv.Args())
		}
	}
	if err != nil {
		return c.cacheFailed(res, &cache.CacheWriteFailure{Cause: err, Message: "derive delta"})
	}
	if d.Empty() {
		return nil
	}
	if err := c.cache.Apply(ctx, d); err != nil {
		if !cache.IsCacheWriteFailure(err) {
			err = &cache.CacheWriteFailure{Cause: err}
		}
		return c.cacheFailed(res, err)
	}
	return nil
}

func (c *Client) cacheFailed(res *dispatch.Result, err error) error {
	c.logger.Warn("cache write failed",
		"client_id", res.ClientID,
		"method", res.Name,
		"error", err,
	)
	return err
}

// Echo sends Core/echo with args and returns what the server echoed.
func (c *Client) Echo(ctx context.Context, args map[string]any) (map[string]any, error) {
	b := c.NewBatch()
	id, err := b.Add(shape.Echo(args))
	if err != nil {
		return nil, err
	}
	req, err := b.Build()
	if err != nil {
		return nil, err
	}
	results, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	res, ok := results.Get(id)
	if !ok {
		return nil, fmt.Errorf("echo: no result for %s", id)
	}
	resp, err := dispatch.As[shape.EchoResponse](res)
	if err != nil {
		return nil, err
	}
	return *resp, nil
}
