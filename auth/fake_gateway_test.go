package auth_test

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/gateway"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

var _ auth.Gateway = (*scriptedGateway)(nil)

// scriptedGateway lets a test hold a call open to interleave other operations.
// Gates must be set before the call starts.
type scriptedGateway struct {
	loginGate      chan struct{}
	refreshGate    chan struct{}
	loginStarted   chan struct{}
	refreshStarted chan struct{}
	loginErr       error
	refreshErr     error
	logoutErr      error
	logouts        atomic.Int32
	refreshes      atomic.Int32
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{
		loginStarted:   make(chan struct{}, 16),
		refreshStarted: make(chan struct{}, 16),
	}
}

func (g *scriptedGateway) Login(ctx context.Context, username, password string) (*gateway.TokenResponse, error) {
	signal(g.loginStarted)
	if err := wait(ctx, g.loginGate); err != nil {
		return nil, err
	}
	if g.loginErr != nil {
		return nil, g.loginErr
	}
	return &gateway.TokenResponse{AccessToken: utils.Ptr("login-token")}, nil
}

func (g *scriptedGateway) Refresh(ctx context.Context) (*gateway.TokenResponse, error) {
	n := g.refreshes.Add(1)
	signal(g.refreshStarted)
	if err := wait(ctx, g.refreshGate); err != nil {
		return nil, err
	}
	if g.refreshErr != nil {
		return nil, g.refreshErr
	}
	return &gateway.TokenResponse{AccessToken: utils.Ptr(fmt.Sprintf("refresh-token-%d", n))}, nil
}

func (g *scriptedGateway) Logout(ctx context.Context) error {
	g.logouts.Add(1)
	return g.logoutErr
}

func signal(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
