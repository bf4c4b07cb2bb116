package cluster

import (
	"fmt"
	"log/slog"
	"os"

	consul "github.com/hashicorp/consul/api"
)

// Service describes the instance announced to Consul.
type Service struct {
	Name string
	// Host is the address Consul uses to reach the health endpoint. Defaults to
	// the hostname, which resolves inside a compose network.
	Host string
	Port int
	Tags []string
}

// ID is unique per instance.
func (s Service) ID() string {
	return fmt.Sprintf("%s-%s", s.Name, s.Host)
}

// Registration is a live Consul entry that must be removed on shutdown.
type Registration struct {
	agent  *consul.Agent
	id     string
	logger *slog.Logger
}

// Register announces svc with an HTTP check on /health.
func Register(client *consul.Client, svc Service, logger *slog.Logger) (*Registration, error) {
	if svc.Host == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve hostname: %w", err)
		}
		svc.Host = host
	}

	reg := &consul.AgentServiceRegistration{
		ID:      svc.ID(),
		Name:    svc.Name,
		Port:    svc.Port,
		Address: svc.Host,
		Tags:    svc.Tags,
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", svc.Host, svc.Port),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return nil, fmt.Errorf("register %s in consul: %w", reg.ID, err)
	}

	logger.Info("registered in consul", "service", svc.Name, "id", reg.ID)
	return &Registration{agent: client.Agent(), id: reg.ID, logger: logger}, nil
}

// ID returns the Consul service id.
func (r *Registration) ID() string { return r.id }

// Deregister removes the entry. Safe on a nil registration.
func (r *Registration) Deregister() error {
	if r == nil {
		return nil
	}
	if err := r.agent.ServiceDeregister(r.id); err != nil {
		return fmt.Errorf("deregister %s: %w", r.id, err)
	}
	r.logger.Info("deregistered from consul", "id", r.id)
	return nil
}
