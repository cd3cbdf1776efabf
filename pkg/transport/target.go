package transport

import (
	"net"
	"net/url"
	"strconv"
)

// Target describes where and how to connect.
type Target struct {
	// Host is the server host name or address.
	Host string

	// Port is the server port.
	Port int

	// TLS enables transport-layer security.
	TLS bool

	// InsecureSkipVerify disables certificate verification when TLS is on.
	InsecureSkipVerify bool

	// Path is the HTTP path of the websocket endpoint.
	Path string

	// Token is sent as a bearer token during the handshake when set.
	Token string
}

// Address returns host:port.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// URL returns the websocket URL for the target.
func (t Target) URL() string {
	scheme := "ws"
	if t.TLS {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   t.Address(),
		Path:   t.Path,
	}
	return u.String()
}
