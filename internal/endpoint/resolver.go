// Package endpoint computes the candidate base addresses of the backend.
package endpoint

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBackendPort is the port the backend listens on next to the UI host
const DefaultBackendPort = 8000

// Config is the deployment information the resolver works from
type Config struct {
	// Override is an explicitly configured backend address, may be empty
	Override string
	// Origin is the scheme://host[:port] the client presents itself as
	Origin string
	// BackendPort is used for the same-host guess, DefaultBackendPort if zero
	BackendPort int
}

// Resolve returns the ordered, deduplicated candidate base addresses:
// the override, the origin's host on the backend port, then the origin.
// Entries carry no trailing slash. It never fails; sources that cannot be
// derived are skipped.
func Resolve(cfg Config) []string {
	port := cfg.BackendPort
	if port <= 0 {
		port = DefaultBackendPort
	}

	raw := []string{
		strings.TrimSpace(cfg.Override),
		sameHost(cfg.Origin, port),
		strings.TrimSpace(cfg.Origin),
	}

	candidates := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, candidate := range raw {
		candidate = strings.TrimSuffix(candidate, "/")
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// sameHost builds {scheme}://{hostname}:{port} from origin
func sameHost(origin string, port int) string {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return ""
	}
	return u.Scheme + "://" + net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
}

// Candidates resolves cfg. It matches the candidate source expected by the
// failover layer, which calls it once per logical request.
func (cfg Config) Candidates() []string {
	return Resolve(cfg)
}
