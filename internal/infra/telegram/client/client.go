// Package client собирает gotd-клиент, кэш пиров и менеджер соединения в единый
// объект на одну MTProto-сессию. Каждая задача мониторинга и поиск по чёрному
// списку используют собственный Tenant — так достигается требуемая спеком
// изоляция по сессиям (parser session и blacklist session никогда не делят
// один файл).
package client

import (
	"context"
	"fmt"

	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/infra/telegram/connection"
	"pvz-shift-monitor/internal/infra/telegram/peersmgr"
	"pvz-shift-monitor/internal/infra/telegram/session"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
)

// ErrNotAuthorized signals that the session file has no valid authorization
// and, since this service has no interactive terminal, cannot self-heal —
// the caller must treat the owning task as AuthExpired (spec §7, terminal).
var ErrNotAuthorized = errors.New("client: session is not authorized")

// Options configures a single Tenant.
type Options struct {
	APIID        int
	APIHash      string
	SessionPath  string
	PeerDBPath   string
	TestDC       bool
	Dispatcher   *tg.UpdateDispatcher
	DeviceModel  string
}

// Tenant wraps one MTProto session: the gotd client, the raw RPC surface,
// the per-session peer cache, the flood-wait waiter, and a connection
// manager scoped to this session alone (never shared across tenants).
type Tenant struct {
	opts     Options
	client   *telegram.Client
	api      *tg.Client
	waiter   *floodwait.Waiter
	peers    *peersmgr.Service
	conn     *connection.Manager
	running  bool
}

// New builds a Tenant without connecting. Call Start to bring it online.
func New(opts Options) (*Tenant, error) {
	if opts.APIID == 0 || opts.APIHash == "" {
		return nil, errors.New("client: APIID/APIHash are required")
	}
	if opts.SessionPath == "" {
		return nil, errors.New("client: SessionPath is required")
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = func() *tg.UpdateDispatcher { d := tg.NewUpdateDispatcher(); return &d }()
	}
	if opts.DeviceModel == "" {
		opts.DeviceModel = "pvz-shift-monitor"
	}

	conn := connection.New()
	waiter := floodwait.NewWaiter().WithCallback(func(ctx context.Context, wait floodwait.FloodWait) {
		logger.Warnf("client: flood-wait %s, sleeping %s", opts.SessionPath, wait.Duration)
	})

	tgOptions := telegram.Options{
		SessionStorage: &session.FileStorage{Path: opts.SessionPath, Conn: conn},
		UpdateHandler:  opts.Dispatcher,
		Middlewares:    []telegram.Middleware{waiter},
		OnDead: func() {
			conn.MarkDisconnected()
		},
		Device: telegram.DeviceConfig{
			DeviceModel:   opts.DeviceModel,
			SystemVersion: "linux",
			AppVersion:    "1.0.0",
		},
	}
	if opts.TestDC {
		tgOptions.DCList = dcs.Test()
	}

	tgClient := telegram.NewClient(opts.APIID, opts.APIHash, tgOptions)
	conn.SetClient(tgClient)

	return &Tenant{
		opts:   opts,
		client: tgClient,
		api:    tgClient.API(),
		waiter: waiter,
		conn:   conn,
	}, nil
}

// API exposes the raw RPC client for components that need direct calls
// (blacklist search, forum topics) beyond the wrapper's own surface.
func (t *Tenant) API() *tg.Client { return t.api }

// Start connects and blocks until ctx is cancelled or a fatal error occurs.
// fn is invoked once the session is confirmed authorized and the peer cache
// is loaded; it should run the component's own event loop and return when
// ctx is done.
func (t *Tenant) Start(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.waiter.Run(ctx, func(ctx context.Context) error {
		return t.client.Run(ctx, func(ctx context.Context) error {
			status, err := t.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status: %w", err)
			}
			if !status.Authorized {
				return ErrNotAuthorized
			}
			t.conn.MarkConnected()

			peers, err := peersmgr.New(t.api, t.opts.PeerDBPath)
			if err != nil {
				return fmt.Errorf("init peer cache: %w", err)
			}
			t.peers = peers
			defer func() { _ = peers.Close() }()

			if err := peers.LoadFromStorage(ctx); err != nil {
				logger.Warnf("client: load peer cache from storage failed, continuing cold: %v", err)
			}

			t.running = true
			defer func() { t.running = false }()

			return fn(ctx)
		})
	})
}

// WaitOnline blocks until the session's connection manager reports online,
// or ctx is cancelled.
func (t *Tenant) WaitOnline(ctx context.Context) {
	t.conn.WaitOnline(ctx)
}

// Peers exposes the per-session peer cache, valid only while Start's fn is
// running.
func (t *Tenant) Peers() *peersmgr.Service { return t.peers }

// Self returns the authorized account identity.
func (t *Tenant) Self(ctx context.Context) (*tg.User, error) {
	return t.client.Self(ctx)
}

// Running reports whether Start's inner fn is currently executing.
func (t *Tenant) Running() bool { return t.running }
