package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/nhle/gmail-notifier/internal/credential"
	"github.com/nhle/gmail-notifier/internal/gateway"
	"github.com/nhle/gmail-notifier/internal/logging"
	"github.com/nhle/gmail-notifier/internal/metrics"
	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/store"
	"github.com/nhle/gmail-notifier/internal/sync"
)

const probeTimeout = 5 * time.Second

// runtime is the wired engine shared by watch and poll.
type runtime struct {
	cfg     *model.AppConfig
	logger  *slog.Logger
	store   *store.SQLiteStore
	metrics *metrics.Metrics
	engine  *sync.Engine
}

func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer) (*slog.Logger, error) {
	return logging.New(w, logLevel, logFormat)
}

// newRuntime wires the gateway, store and engine for cfg. A missing session
// cookie is not an error: the engine reports the account as signed out.
func newRuntime(cfg *model.AppConfig, logger *slog.Logger) (*runtime, error) {
	creds, err := credential.Open()
	if err != nil {
		return nil, err
	}
	cookie, err := creds.Cookie(cfg.AccountIndex)
	if err != nil {
		if !errors.Is(err, credential.ErrNoCookie) {
			return nil, err
		}
		logger.Warn("no gmail session stored; run 'gmailnotifier login'")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	gw, err := gateway.New(gateway.Options{
		MailboxURL:    cfg.MailboxURL(),
		Cookie:        cookie,
		Timeout:       cfg.GatewayTimeout,
		ReadOnArchive: cfg.ReadOnArchive,
		Breaker:       cfg.Breaker,
		Metrics:       m,
		Logger:        logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	engine := sync.NewEngine(gw,
		sync.WithStore(st),
		sync.WithLogger(logger),
		sync.WithConnectivity(sync.DialProbe(probeAddr(cfg.MailboxURL()), probeTimeout)),
		sync.WithMetrics(m),
		sync.WithEffectTimeout(cfg.EffectTimeout),
		sync.WithLocation(loc),
	)

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: m,
		engine:  engine,
	}, nil
}

// openStore opens the session store, creating its directory.
func openStore(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return store.NewSQLiteStore(cfg.StorePath)
}

// Close waits for background mutations and closes the store.
func (r *runtime) Close() error {
	r.engine.Wait()
	return r.store.Close()
}

// probeAddr is the host:port dialled to decide whether the network is up.
func probeAddr(mailbox string) string {
	u, err := url.Parse(mailbox)
	if err != nil || u.Host == "" {
		return "mail.google.com:443"
	}
	if u.Port() != "" {
		return u.Host
	}
	port := "443"
	if u.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
