package elog

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// KerberosCredential mints HTTP Negotiate headers from the local ticket
// cache. Ticket validity is checked with klist; the SPNEGO token itself is
// produced by a helper command so the binary carries no GSSAPI bindings.
type KerberosCredential struct {
	// Principal is the target service principal, e.g. HTTP@pswww.slac.stanford.edu.
	Principal string

	// TokenCommand produces a base64 SPNEGO token for Principal on stdout.
	// When empty, "kvno-negotiate" is invoked with the principal as its
	// only argument.
	TokenCommand []string

	mu     sync.Mutex
	cached map[string]string
}

// NewKerberosCredential creates a credential for the given service
// principal using the default token helper.
func NewKerberosCredential(principal string) *KerberosCredential {
	if principal == "" {
		principal = DefaultPrincipal
	}
	return &KerberosCredential{Principal: principal}
}

// AuthHeaders implements Credential.
func (k *KerberosCredential) AuthHeaders(ctx context.Context) (map[string]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cached != nil {
		return k.cached, nil
	}

	if err := checkTicket(ctx); err != nil {
		return nil, err
	}

	argv := k.TokenCommand
	if len(argv) == 0 {
		argv = []string{"kvno-negotiate", k.Principal}
	}

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain Kerberos token for %s: %w", k.Principal, err)
	}

	token := strings.TrimSpace(string(out))
	if token == "" {
		return nil, fmt.Errorf("empty Kerberos token for %s", k.Principal)
	}

	k.cached = map[string]string{"Authorization": "Negotiate " + token}
	return k.cached, nil
}

// Refresh implements Credential. The next AuthHeaders call mints a fresh
// token.
func (k *KerberosCredential) Refresh() {
	k.mu.Lock()
	k.cached = nil
	k.mu.Unlock()
}

// checkTicket verifies a usable ticket exists in the credential cache.
// klist -s exits non-zero when the cache is missing or expired.
func checkTicket(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "klist", "-s").Run(); err != nil {
		return fmt.Errorf("no valid Kerberos ticket (run kinit): %w", err)
	}
	return nil
}
