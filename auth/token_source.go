package auth

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	s *Service
}

// TokenSource exposes the current session to golang.org/x/oauth2 clients.
// It never refreshes; the Request Authorizer owns that.
func (s *Service) TokenSource() oauth2.TokenSource {
	return tokenSource{s: s}
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	accessToken, ok := ts.s.deps.Store.Get()
	if !ok {
		return nil, ErrNoSession
	}
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if id, err := ts.s.decoder.Decode(context.Background(), accessToken); err == nil {
		tok.Expiry = id.ExpiresAt
	}
	return tok, nil
}
