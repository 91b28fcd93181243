// Package rtcodec decodes the two datagram-oriented wire formats RAOP
// sessions read off their UDP sockets: plain RTP (audio and timing ports)
// and the fixed 20-byte RTP-control layout (control port).
package rtcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtp"
)

// ErrIncomplete marks a datagram that is too short or otherwise not yet a
// full packet. Unlike the RTSP codec there is nothing to "wait for" on a
// datagram transport; callers simply drop the packet.
var ErrIncomplete = errors.New("rtcodec: incomplete packet")

// ErrBadVersion marks an RTP version other than 2, which spec.md treats
// as fatal for the owning session rather than a droppable packet.
var ErrBadVersion = errors.New("rtcodec: unsupported rtp version")

// Packet is the minimal view of an RTP datagram the RAOP session needs:
// which payload type it carries and the payload bytes themselves.
type Packet struct {
	PayloadType uint8
	Payload     []byte
}

// Decode parses a UDP payload as an RTP packet. It mirrors the teacher's
// RTPUnmarshal (media/rtp_parse.go), built on pion/rtp's header parser,
// with the addition of the explicit version check spec.md requires.
func Decode(buf []byte) (Packet, error) {
	var hdr rtp.Header
	n, err := hdr.Unmarshal(buf)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrIncomplete, err)
	}

	if hdr.Version != 2 {
		return Packet{}, fmt.Errorf("%w: %d", ErrBadVersion, hdr.Version)
	}

	end := len(buf)
	if hdr.Padding {
		if end == 0 {
			return Packet{}, ErrIncomplete
		}
		paddingSize := int(buf[end-1])
		end -= paddingSize
	}
	if end < n {
		return Packet{}, fmt.Errorf("%w: %v", ErrIncomplete, io.ErrShortBuffer)
	}

	payload := make([]byte, end-n)
	copy(payload, buf[n:end])

	return Packet{
		PayloadType: hdr.PayloadType,
		Payload:     payload,
	}, nil
}

// ControlPacket is the fixed 20-byte layout RAOP sends on the control
// port: a 4-byte RTP header, RTP timestamp, NTP seconds, NTP fraction,
// and the next-packet timestamp. There is no variable-length payload.
type ControlPacket struct {
	Timestamp           uint32
	CurrentTimeSeconds  uint32
	CurrentTimeFraction uint32
	NextTimestamp       uint32
}

const controlPacketSize = 20

// DecodeControl parses the fixed-size control-port datagram.
func DecodeControl(buf []byte) (ControlPacket, error) {
	if len(buf) < controlPacketSize {
		return ControlPacket{}, ErrIncomplete
	}

	return ControlPacket{
		Timestamp:           binary.BigEndian.Uint32(buf[4:8]),
		CurrentTimeSeconds:  binary.BigEndian.Uint32(buf[8:12]),
		CurrentTimeFraction: binary.BigEndian.Uint32(buf[12:16]),
		NextTimestamp:       binary.BigEndian.Uint32(buf[16:20]),
	}, nil
}
