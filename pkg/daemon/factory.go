package daemon

import (
	"net"
	"time"

	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/errors"
	"github.com/sirupsen/logrus"
)

// Endpoint returns the network and address the daemon for cfg listens on.
func Endpoint(cfg *config.Config) (network, address string) {
	if cfg.Server.Addr != "" {
		return "tcp", cfg.Server.Addr
	}
	return "unix", cfg.ResolvePath(cfg.Server.Socket)
}

// New returns a Client that will use the daemon if available,
// otherwise falls back to LocalClient.
//
// Callers don't need to know whether the daemon is running or not. The same
// API works in both modes, except for commands and streaming.
func New(cfg *config.Config, logger *logrus.Entry) Client {
	network, address := Endpoint(cfg)
	conn, err := net.DialTimeout(network, address, 100*time.Millisecond)
	if err == nil {
		conn.Close()
		return NewRemoteClient(network, address)
	}

	// Fallback: daemon not running, use local client
	return NewLocalClient(cfg, logger)
}

// Connect returns a RemoteClient for cfg's daemon, or an error naming
// operation if it is not responding. Use this where the daemon is required.
func Connect(cfg *config.Config, operation string) (*RemoteClient, error) {
	network, address := Endpoint(cfg)
	client := NewRemoteClient(network, address)
	if !client.IsRunning() {
		return nil, errors.DaemonUnavailable(operation).WithDetail("address", client.Address())
	}
	return client, nil
}
