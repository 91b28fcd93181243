package alac

import (
	"fmt"
	"strconv"
	"strings"
)

// MagicCookie holds the 24-byte ALAC "magic cookie" codec configuration
// carried in SDP's fmtp attribute as 11 space-separated ASCII integers
// (see SPEC_FULL §4.4).
type MagicCookie struct {
	FrameLength       uint32
	CompatibleVersion uint8
	BitDepth          uint8
	PB                uint8
	MB                uint8
	KB                uint8
	NumChannels       uint8
	MaxRun            uint16
	MaxFrameBytes     uint32
	AvgBitRate        uint32
	SampleRate        uint32
}

// ParseFmtp parses the space-separated fmtp parameter list SDP carries for
// an AppleLossless rtpmap entry. The first token is the RTP payload type
// and is ignored here; the remaining 11 tokens are the magic cookie.
func ParseFmtp(fmtp string) (*MagicCookie, error) {
	fields := strings.Fields(fmtp)
	if len(fields) < 12 {
		return nil, fmt.Errorf("alac: fmtp has %d fields, want at least 12", len(fields))
	}

	// fields[0] is the payload type; the cookie starts at fields[1].
	vals := make([]uint64, 11)
	for i := 0; i < 11; i++ {
		v, err := strconv.ParseUint(fields[i+1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("alac: fmtp field %d (%q): %w", i+1, fields[i+1], err)
		}
		vals[i] = v
	}

	return &MagicCookie{
		FrameLength:       uint32(vals[0]),
		CompatibleVersion: uint8(vals[1]),
		BitDepth:          uint8(vals[2]),
		PB:                uint8(vals[3]),
		MB:                uint8(vals[4]),
		KB:                uint8(vals[5]),
		NumChannels:       uint8(vals[6]),
		MaxRun:            uint16(vals[7]),
		MaxFrameBytes:     uint32(vals[8]),
		AvgBitRate:        uint32(vals[9]),
		SampleRate:        uint32(vals[10]),
	}, nil
}
