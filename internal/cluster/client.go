// Package cluster registers services in Consul and exposes their health.
package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	consul "github.com/hashicorp/consul/api"
)

// ErrNoAgent is returned when none of the configured Consul agents answers.
var ErrNoAgent = errors.New("no consul agent available")

// NewConsulClient tries each comma separated address in turn and returns a
// client for the first agent that knows a raft leader.
func NewConsulClient(addrs string, logger *slog.Logger) (*consul.Client, error) {
	for node := range strings.SplitSeq(addrs, ",") {
		node = strings.TrimSpace(node)
		if node == "" {
			continue
		}
		cfg := consul.DefaultConfig()
		cfg.Address = node

		client, err := consul.NewClient(cfg)
		if err != nil {
			logger.Warn("consul client rejected address", "addr", node, "error", err)
			continue
		}
		if _, err := client.Status().Leader(); err != nil {
			logger.Warn("consul agent unreachable", "addr", node, "error", err)
			continue
		}

		logger.Info("connected to consul", "addr", node)
		return client, nil
	}
	return nil, fmt.Errorf("%w in %q", ErrNoAgent, addrs)
}
