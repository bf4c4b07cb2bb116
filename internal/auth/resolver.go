package auth

import (
	"context"
	"errors"
)

// ErrNoSession means the token does not map to a logged-in user.
var ErrNoSession = errors.New("no session")

// Resolver maps a session token to a username.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, token string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// Chain tries each resolver in order and returns the first username found.
// ErrNoSession is returned only when every resolver reports it.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}
	var errs []error
	for _, r := range c {
		username, err := r.Resolve(ctx, token)
		if err == nil {
			return username, nil
		}
		if !errors.Is(err, ErrNoSession) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", ErrNoSession
}
