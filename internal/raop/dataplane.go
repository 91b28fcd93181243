package raop

import "github.com/dlunch/ras/internal/rtcodec"

// handleRTP decrypts (if a cipher was negotiated), decodes, and writes one
// audio packet to the sink. Any failure here is DecodeDropped (spec.md
// §7): logged at trace, the packet dropped, the session left running.
func (s *Session) handleRTP(buf []byte) {
	if s.stream == nil {
		return
	}

	pkt, err := rtcodec.Decode(buf)
	if err != nil {
		s.log.Trace().Err(err).Msg("dropping unparseable rtp packet")
		return
	}
	if pkt.PayloadType != s.stream.RTPPayloadType {
		s.log.Trace().Uint8("payload_type", pkt.PayloadType).Msg("dropping rtp packet with mismatched payload type")
		return
	}

	payload := pkt.Payload
	if s.stream.Cipher != nil {
		decrypted, err := s.stream.Cipher.Decrypt(payload)
		if err != nil {
			s.log.Trace().Err(err).Msg("dropping rtp packet: decrypt failed")
			return
		}
		payload = decrypted
	}

	pcm, err := s.stream.Decoder.Decode(payload)
	if err != nil {
		s.log.Trace().Err(err).Msg("dropping rtp packet: decode failed")
		return
	}

	if err := s.stream.Sink.Write(pcm); err != nil {
		s.log.Trace().Err(err).Msg("dropping rtp packet: sink write failed")
	}
}

// handleControl parses and logs control-port packets. Clock recovery is a
// stated non-goal (spec.md §9): the parsed fields are trace-logged only.
func (s *Session) handleControl(buf []byte) {
	pkt, err := rtcodec.DecodeControl(buf)
	if err != nil {
		s.log.Trace().Err(err).Msg("dropping unparseable control packet")
		return
	}
	s.log.Trace().
		Uint32("timestamp", pkt.Timestamp).
		Uint32("next_timestamp", pkt.NextTimestamp).
		Msg("control packet received")
}

// handleTiming parses and logs timing-port packets. Timing/clock sync is a
// stub in this iteration (spec.md §9).
func (s *Session) handleTiming(buf []byte) {
	pkt, err := rtcodec.Decode(buf)
	if err != nil {
		s.log.Trace().Err(err).Msg("dropping unparseable timing packet")
		return
	}
	s.log.Trace().Uint8("payload_type", pkt.PayloadType).Msg("timing packet received")
}
