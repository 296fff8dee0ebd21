package layman

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// DefaultPort is used by Listen when no port is given.
const DefaultPort = 80

// Listen starts an HTTP server on :port with d as its handler and returns
// it once the socket is bound. Port 0 means DefaultPort.
func (d *Dispatcher) Listen(port int) (*http.Server, error) {
	if port == 0 {
		port = DefaultPort
	}
	return d.ListenAddr(":" + strconv.Itoa(port))
}

// ListenAddr is Listen for an explicit address. The returned server's Addr
// holds the bound address, which matters when addr asks for port 0.
func (d *Dispatcher) ListenAddr(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           d,
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("server failed", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}()
	return srv, nil
}
