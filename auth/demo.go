package auth

import (
	"fmt"
	"sort"

	"github.com/jrsteele09/go-auth-session/internal/config"
)

// DemoCredentials returns the login for a configured demo account, e.g.
// "admin" or "employee"
func DemoCredentials(accounts config.DemoAccounts, name string) (LoginRequest, error) {
	account, ok := accounts[name]
	if !ok {
		names := make([]string, 0, len(accounts))
		for n := range accounts {
			names = append(names, n)
		}
		sort.Strings(names)
		return LoginRequest{}, fmt.Errorf("unknown demo account %q (have %v)", name, names)
	}
	return LoginRequest{Username: account.Username, Password: account.Password}, nil
}
