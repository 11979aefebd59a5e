// Package connstring parses the URI-style connection strings used by
// the CLI and MCP host surfaces to address a running engine instance.
//
// Adapted from pkg/core/connstring.go: same scheme/host/dataset shape,
// renamed to this project's scheme and default port.
package connstring

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPort is used for any host with no explicit port.
const DefaultPort = "7070"

// Info holds parsed connection string components.
//
//	graphdb://[user:password@]host1[:port1][,host2[:port2]...][/dataset]
//	graphdb+tls://... for TLS connections.
type Info struct {
	Scheme   string
	User     string
	Password string
	Hosts    []string
	Dataset  string
	TLS      bool
}

// Parse parses a graphdb connection string.
func Parse(raw string) (*Info, error) {
	if raw == "" {
		return nil, fmt.Errorf("connstring: connection string must not be empty")
	}

	if !strings.HasPrefix(raw, "graphdb://") && !strings.HasPrefix(raw, "graphdb+tls://") {
		return nil, fmt.Errorf("connstring: must start with graphdb:// or graphdb+tls://, got %q", raw)
	}

	info := &Info{Scheme: "graphdb"}
	if strings.HasPrefix(raw, "graphdb+tls://") {
		info.Scheme = "graphdb+tls"
		info.TLS = true
	}

	normalized := strings.Replace(raw, info.Scheme+"://", "http://", 1)
	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("connstring: invalid connection string: %w", err)
	}

	if parsed.User != nil {
		info.User = parsed.User.Username()
		info.Password, _ = parsed.User.Password()
	}

	hostPart := parsed.Host
	if hostPart == "" {
		return nil, fmt.Errorf("connstring: must contain at least one host")
	}
	for _, h := range strings.Split(hostPart, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !strings.Contains(h, ":") {
			h += ":" + DefaultPort
		}
		info.Hosts = append(info.Hosts, h)
	}
	if len(info.Hosts) == 0 {
		return nil, fmt.Errorf("connstring: must contain at least one host")
	}

	if path := strings.TrimPrefix(parsed.Path, "/"); path != "" {
		info.Dataset = path
	}

	return info, nil
}

// String reconstructs the connection string with the password masked.
func (i *Info) String() string {
	var sb strings.Builder
	sb.WriteString(i.Scheme)
	sb.WriteString("://")
	if i.User != "" {
		sb.WriteString(i.User)
		if i.Password != "" {
			sb.WriteString(":***")
		}
		sb.WriteByte('@')
	}
	sb.WriteString(strings.Join(i.Hosts, ","))
	if i.Dataset != "" {
		sb.WriteByte('/')
		sb.WriteString(i.Dataset)
	}
	return sb.String()
}

// PrimaryHost returns the first host.
func (i *Info) PrimaryHost() string {
	if len(i.Hosts) == 0 {
		return ""
	}
	return i.Hosts[0]
}

// BaseURL returns the HTTP(S) base URL for the primary host.
func (i *Info) BaseURL() string {
	scheme := "http"
	if i.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, i.PrimaryHost())
}
