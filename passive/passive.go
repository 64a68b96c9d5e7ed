// Package passive defines the contract for passive discovery sources:
// services that know about a domain's subdomains without any query reaching
// the target's own infrastructure.
package passive

import "context"

// Source enumerates candidate subdomains for a domain. Implementations are
// expected to be safe for concurrent use; Enumerate must honour ctx and
// return an error rather than block past its own timeout.
type Source interface {
	Name() string
	Enumerate(ctx context.Context, domain string) ([]string, error)
}
