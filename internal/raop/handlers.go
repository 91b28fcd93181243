package raop

import (
	"errors"
	"fmt"

	"github.com/dlunch/ras/internal/rtsp"
)

// handleRequest dispatches one RTSP request per the state table in
// spec.md §4.6, writing exactly one response. A nil response means a
// spec.md §7 Fatal-class error occurred: no response is written and the
// session ends immediately instead.
func (s *Session) handleRequest(req *rtsp.Request) {
	resp := s.buildResponse(req)
	if resp == nil {
		s.close()
		return
	}
	s.conn.Write(resp.Encode())
	if req.Method == "TEARDOWN" {
		s.close()
	}
}

// buildResponse runs the state machine for one request and returns the
// fully-stamped response, without performing any I/O. Split out from
// handleRequest so the dispatch logic can be exercised without a live
// connection. Returns nil on a Fatal-class error (see handleAnnounce).
func (s *Session) buildResponse(req *rtsp.Request) *rtsp.Response {
	s.log.Debug().Str("method", req.Method).Str("path", req.Path).Str("state", s.state.String()).Msg("rtsp request")

	var resp *rtsp.Response
	switch req.Method {
	case "ANNOUNCE":
		resp = s.handleAnnounce(req)
		if resp == nil {
			return nil
		}
	case "SETUP":
		resp = s.handleSetup(req)
	case "RECORD":
		resp = s.handleRecord(req)
	case "PAUSE", "FLUSH":
		resp = rtsp.NewResponse(rtsp.StatusOK)
	case "TEARDOWN":
		resp = rtsp.NewResponse(rtsp.StatusOK)
	case "OPTIONS":
		resp = rtsp.NewResponse(rtsp.StatusOK)
		resp.Headers.Set("Public", publicMethods)
	case "GET_PARAMETER", "SET_PARAMETER":
		resp = rtsp.NewResponse(rtsp.StatusOK)
	case "GET", "POST":
		resp = rtsp.NewResponse(rtsp.StatusNotFound)
	default:
		resp = rtsp.NewResponse(rtsp.StatusMethodNotAllowed)
	}

	s.finishResponse(req, resp)
	return resp
}

// finishResponse stamps the headers every response carries regardless of
// handler: CSeq echo, Server identity, and an Apple-Response if the
// request challenged us.
func (s *Session) finishResponse(req *rtsp.Request, resp *rtsp.Response) {
	if cseq, ok := req.Headers.Get("CSeq"); ok {
		resp.Headers.Set("CSeq", cseq)
	}
	resp.Headers.Set("Server", ServerVersion)

	if challenge, ok := req.Headers.Get("Apple-Challenge"); ok && s.challenger != nil {
		response, err := s.challenger.Response(challenge)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to compute apple-response")
		} else {
			resp.Headers.Set("Apple-Response", response)
		}
	}
}

// handleAnnounce classifies buildStreamInfo's error against the spec.md
// §7 taxonomy: an unknown codec is Fatal (nil response, session ends with
// no reply at all); a sink/resource failure is Internal (500, CSeq
// preserved, session survives); anything else is malformed client input
// (BadRequest, 400).
func (s *Session) handleAnnounce(req *rtsp.Request) *rtsp.Response {
	stream, err := buildStreamInfo(req.Content, s.sink)
	if err != nil {
		switch {
		case errors.Is(err, ErrFatal):
			s.log.Error().Err(err).Msg("fatal announce error, ending session")
			return nil
		case errors.Is(err, ErrInternal):
			s.log.Error().Err(err).Msg("internal announce error")
			return rtsp.NewResponse(rtsp.StatusInternalServerError)
		default:
			s.log.Warn().Err(err).Msg("announce failed")
			return rtsp.NewResponse(rtsp.StatusBadRequest)
		}
	}

	if s.stream != nil && s.stream.Sink != nil {
		s.stream.Sink.Close()
	}
	s.stream = stream
	s.state = StateAnnounced
	return rtsp.NewResponse(rtsp.StatusOK)
}

func (s *Session) handleSetup(req *rtsp.Request) *rtsp.Response {
	if s.state == StateNew {
		return rtsp.NewResponse(rtsp.StatusBadRequest)
	}

	// The client-supplied Transport header is informational only; this
	// server always replies with the ports it already bound at creation.
	_, _ = req.Headers.Get("Transport")

	resp := rtsp.NewResponse(rtsp.StatusOK)
	resp.Headers.Set("Transport", fmt.Sprintf(
		"RTP/AVP/UDP;unicast;mode=record;server_port=%d;control_port=%d;timing_port=%d",
		s.serverPort, s.controlPort, s.timingPort,
	))
	resp.Headers.Set("Session", fmt.Sprintf("%d", s.id))
	s.state = StateSetup
	return resp
}

func (s *Session) handleRecord(req *rtsp.Request) *rtsp.Response {
	switch s.state {
	case StateNew:
		return rtsp.NewResponse(rtsp.StatusOK)
	case StateAnnounced, StateRecording:
		return rtsp.NewResponse(rtsp.StatusOK)
	case StateSetup:
		s.state = StateRecording
		return rtsp.NewResponse(rtsp.StatusOK)
	default:
		return rtsp.NewResponse(rtsp.StatusOK)
	}
}
