package natsclient

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/DealLink/config"
	"go.uber.org/zap"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultReconnectWait  = 2 * time.Second
	defaultClientName     = "deallink"
)

// Connect dials NATS and returns the connection together with its JetStream
// context. The client reconnects forever; connection state changes are logged.
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := nats.Connect(buildURL(cfg), options(cfg, logger)...)
	if err != nil {
		return nil, nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("nats: init jetstream: %w", err)
	}

	return conn, js, nil
}

func options(cfg config.NATSConfig, logger *zap.Logger) []nats.Option {
	name := cfg.ClientName
	if name == "" {
		name = defaultClientName
	}

	opts := []nats.Option{
		nats.Timeout(defaultConnectTimeout),
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(defaultReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrlRedacted()))
		}),
	}

	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	return opts
}

func buildURL(cfg config.NATSConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 4222
	}
	return fmt.Sprintf("nats://%s:%d", host, port)
}
