package comm

import (
	"fmt"
	"net"
	"net/url"

	xws "golang.org/x/net/websocket"

	"github.com/robotalks/hci.go/pkg/comm/stream"
	"github.com/robotalks/hci.go/pkg/comm/websocket"
)

// Dial connects to a controller and returns the packet connection.
// Supported URLs:
//
//	tcp://host:port
//	unix:///path/to/socket
//	ws://host:port/path, wss://host:port/path
//
// The returned value also implements io.Closer.
func Dial(rawURL string) (PacketReadWriter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid controller URL: %w", err)
	}
	switch u.Scheme {
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return stream.New(conn), nil
	case "unix":
		conn, err := net.Dial("unix", u.Path)
		if err != nil {
			return nil, err
		}
		return stream.New(conn), nil
	case "ws", "wss":
		origin := "http://localhost/"
		if u.Scheme == "wss" {
			origin = "https://localhost/"
		}
		conn, err := xws.Dial(rawURL, "", origin)
		if err != nil {
			return nil, err
		}
		return websocket.New(conn), nil
	}
	return nil, fmt.Errorf("unknown controller URL scheme: %q", u.Scheme)
}

// Pipe creates a pair of connected in-memory packet connections.
func Pipe() (*stream.ReadWriter, *stream.ReadWriter) {
	a, b := net.Pipe()
	return stream.New(a), stream.New(b)
}
