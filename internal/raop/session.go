// Package raop implements the RAOP session state machine: the RTSP
// control-channel handlers and the per-session RTP/control/timing data
// plane, per spec.md §4.6.
package raop

import (
	"context"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dlunch/ras/internal/audiosink"
	"github.com/dlunch/ras/internal/raopcrypto"
	"github.com/dlunch/ras/internal/rtsp"
)

// ServerVersion is the Server header value every response carries.
const ServerVersion = "ras/0.1"

// publicMethods is the Public header value OPTIONS always returns, in the
// order the reference implementation lists them (spec.md §5 scenario
// supplement).
const publicMethods = "ANNOUNCE, SETUP, RECORD, PAUSE, FLUSH, TEARDOWN, OPTIONS, GET_PARAMETER, SET_PARAMETER, POST, GET"

// Session owns one RTSP TCP connection plus the three UDP sockets bound
// for it, and drives the state machine described in spec.md §4.6. A
// single goroutine runs Run and is the only writer of state and stream;
// no locking is needed inside the session (spec.md §5).
type Session struct {
	id   uint32
	log  zerolog.Logger
	conn net.Conn

	rtpConn     *net.UDPConn
	controlConn *net.UDPConn
	timingConn  *net.UDPConn

	serverPort  int
	controlPort int
	timingPort  int

	localIP net.IP
	mac     net.HardwareAddr

	sink audiosink.AudioSink

	state      State
	stream     *StreamInfo
	challenger *raopcrypto.AppleChallenger

	closeOnce sync.Once
}

// NewSession builds a session around an already-accepted TCP connection
// and three already-bound UDP sockets.
func NewSession(id uint32, conn net.Conn, rtpConn, controlConn, timingConn *net.UDPConn, mac net.HardwareAddr, sink audiosink.AudioSink, log zerolog.Logger) *Session {
	localIP := localAddrIP(conn)
	challenger, err := raopcrypto.NewAppleChallenger(localIP, mac)
	if err != nil {
		// An invalid local address/MAC can't be challenged; the session
		// still works for clients that never send Apple-Challenge.
		log.Warn().Err(err).Msg("apple challenger unavailable for this session")
	}

	return &Session{
		id:          id,
		log:         log.With().Uint32("session", id).Logger(),
		conn:        conn,
		rtpConn:     rtpConn,
		controlConn: controlConn,
		timingConn:  timingConn,
		serverPort:  udpPort(rtpConn),
		controlPort: udpPort(controlConn),
		timingPort:  udpPort(timingConn),
		localIP:     localIP,
		mac:         mac,
		sink:        sink,
		state:       StateNew,
		challenger:  challenger,
	}
}

func localAddrIP(conn net.Conn) net.IP {
	if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return net.IPv4zero
}

func udpPort(conn *net.UDPConn) int {
	if conn == nil {
		return 0
	}
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}

// Run drives the session until the TCP stream ends, a fatal codec error
// occurs, or ctx is cancelled. It always closes every socket and the
// stream's sink session on the way out.
func (s *Session) Run(ctx context.Context) {
	defer s.close()

	type rtspEvent struct {
		req *rtsp.Request
		err error
	}
	tcpCh := make(chan rtspEvent)
	go s.readRTSP(tcpCh)

	rtpCh := make(chan []byte, 32)
	controlCh := make(chan []byte, 32)
	timingCh := make(chan []byte, 32)
	go readUDP(s.rtpConn, rtpCh)
	go readUDP(s.controlConn, controlCh)
	go readUDP(s.timingConn, timingCh)

	s.log.Info().Msg("raop session started")
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("raop session cancelled")
			return
		case ev, ok := <-tcpCh:
			if !ok {
				return
			}
			if ev.err != nil {
				s.log.Info().Err(ev.err).Msg("rtsp stream ended")
				return
			}
			s.handleRequest(ev.req)
		case buf, ok := <-rtpCh:
			if !ok {
				rtpCh = nil
				continue
			}
			s.handleRTP(buf)
		case buf, ok := <-controlCh:
			if !ok {
				controlCh = nil
				continue
			}
			s.handleControl(buf)
		case buf, ok := <-timingCh:
			if !ok {
				timingCh = nil
				continue
			}
			s.handleTiming(buf)
		}
	}
}

// readRTSP reads from the TCP connection, accumulating bytes until
// rtsp.Decode yields a full request, and forwards parsed requests (or the
// terminal error) on ch. It exits on ErrBadFrame, EOF, or any read error.
func (s *Session) readRTSP(ch chan<- struct {
	req *rtsp.Request
	err error
}) {
	defer close(ch)
	var buf []byte
	readBuf := make([]byte, 4096)
	for {
		for {
			req, n, err := rtsp.Decode(buf)
			if err == rtsp.ErrIncomplete {
				break
			}
			if err != nil {
				ch <- struct {
					req *rtsp.Request
					err error
				}{nil, err}
				return
			}
			buf = buf[n:]
			ch <- struct {
				req *rtsp.Request
				err error
			}{req, nil}
		}

		n, err := s.conn.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)
		}
		if err != nil {
			ch <- struct {
				req *rtsp.Request
				err error
			}{nil, err}
			return
		}
	}
}

func readUDP(conn *net.UDPConn, ch chan<- []byte) {
	defer close(ch)
	if conn == nil {
		return
	}
	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		payload := append([]byte(nil), buf[:n]...)
		ch <- payload
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
		if s.rtpConn != nil {
			s.rtpConn.Close()
		}
		if s.controlConn != nil {
			s.controlConn.Close()
		}
		if s.timingConn != nil {
			s.timingConn.Close()
		}
		if s.stream != nil && s.stream.Sink != nil {
			s.stream.Sink.Close()
		}
		s.state = StateClosed
		s.log.Info().Msg("raop session closed")
	})
}
