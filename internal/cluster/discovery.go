package cluster

import (
	"errors"
	"fmt"
	"math/rand/v2"

	consul "github.com/hashicorp/consul/api"
)

// ErrNoInstance is returned when a service has no passing instance.
var ErrNoInstance = errors.New("no healthy instance")

// Discover returns host:port of a random passing instance of name.
func Discover(client *consul.Client, name string) (string, error) {
	entries, _, err := client.Health().Service(name, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", name, err)
	}
	return pickInstance(entries, name)
}

func pickInstance(entries []*consul.ServiceEntry, name string) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoInstance, name)
	}
	e := entries[rand.IntN(len(entries))]
	addr := e.Service.Address
	if addr == "" && e.Node != nil {
		addr = e.Node.Address
	}
	return fmt.Sprintf("%s:%d", addr, e.Service.Port), nil
}
