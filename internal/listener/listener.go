// Package listener runs the TCP accept loop that turns inbound RTSP
// connections into RAOP sessions, per spec.md §4.7.
package listener

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dlunch/ras/internal/audiosink"
	"github.com/dlunch/ras/internal/raop"
)

// Listener binds one TCP port and spawns one raop.Session per accepted
// connection, assigning monotonically increasing session ids. The id
// counter is owned solely by the listener, matching spec.md §5.
type Listener struct {
	ln     net.Listener
	sink   audiosink.AudioSink
	mac    net.HardwareAddr
	log    zerolog.Logger
	nextID uint32
}

// New binds addr (":7000" style) and returns a Listener ready to Serve.
func New(addr string, sink audiosink.AudioSink, mac net.HardwareAddr, log zerolog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, sink: sink, mac: mac, log: log}, nil
}

// Addr returns the bound address, letting callers read back the
// ephemeral port when addr was ":0".
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Accept errors are logged and the loop continues, except when
// ctx has already been cancelled, which ends Serve cleanly.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		id := atomic.AddUint32(&l.nextID, 1)
		session, err := l.spawn(id, conn)
		if err != nil {
			l.log.Warn().Err(err).Uint32("session", id).Msg("failed to spawn session")
			conn.Close()
			continue
		}
		go session.Run(ctx)
	}
}

// spawn binds the three UDP sockets a session needs and constructs it.
func (l *Listener) spawn(id uint32, conn net.Conn) (*raop.Session, error) {
	rtpConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	controlConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		rtpConn.Close()
		return nil, err
	}
	timingConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		rtpConn.Close()
		controlConn.Close()
		return nil, err
	}

	return raop.NewSession(id, conn, rtpConn, controlConn, timingConn, l.mac, l.sink, l.log), nil
}
