package internal

import (
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/quartzmc/quartz/auth"
	"github.com/quartzmc/quartz/conf"
	"github.com/quartzmc/quartz/protocol"
)

// Option configures the server.
type Option func(o *options)

type options struct {
	conf          conf.Config
	registry      *protocol.Registry
	bridge        *Bridge
	keyPair       *auth.KeyPair
	authenticator auth.Authenticator
	onlineFn      func() int
	readFilter    middleware.Middleware
}

func newOptions(cfg conf.Config, bridge *Bridge, opts ...Option) *options {
	o := &options{
		conf:     cfg,
		registry: protocol.BaseRegistry(),
		bridge:   bridge,
		onlineFn: func() int { return 0 },
		readFilter: middleware.Chain(
			recovery.Recovery(),
		),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.authenticator == nil {
		o.authenticator = auth.NewSessionClient(cfg.Login.SessionURL, cfg.Login.SessionTimeout)
	}

	return o
}

// WithRegistry installs a packet registry carrying the gameplay packets on
// top of the base serverbound set.
func WithRegistry(r *protocol.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithKeyPair reuses an existing login keypair instead of generating one.
func WithKeyPair(k *auth.KeyPair) Option {
	return func(o *options) {
		o.keyPair = k
	}
}

// WithAuthenticator overrides the session-server client.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *options) {
		o.authenticator = a
	}
}

// WithOnlineCounter supplies the live player count for status responses.
func WithOnlineCounter(f func() int) Option {
	return func(o *options) {
		o.onlineFn = f
	}
}

// WithReadFilter chains a middleware onto the inbound dispatch path.
func WithReadFilter(m middleware.Middleware) Option {
	return func(o *options) {
		if o.readFilter == nil {
			o.readFilter = m
			return
		}

		o.readFilter = middleware.Chain(o.readFilter, m)
	}
}
