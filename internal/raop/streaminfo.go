package raop

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dlunch/ras/internal/audiosink"
	"github.com/dlunch/ras/internal/decoder"
	"github.com/dlunch/ras/internal/decoder/alac"
	"github.com/dlunch/ras/internal/raopcrypto"
	"github.com/dlunch/ras/internal/sdp"
)

// ErrUnknownCodec wraps ErrFatal (spec.md §7): the ANNOUNCE body named a
// codec this server has no decoder for, so the session terminates rather
// than replying 400.
var ErrUnknownCodec = errors.New("raop: unknown codec in rtpmap")

// StreamInfo is everything an ANNOUNCE negotiates: which RTP payload type
// carries audio, how to decode and (optionally) decrypt it, and the sink
// session decoded PCM is written to. Per spec.md §5 it is touched only by
// the session task that owns it.
type StreamInfo struct {
	RTPPayloadType uint8
	Decoder        decoder.Decoder
	Cipher         *raopcrypto.Cipher // nil when the stream is unencrypted
	Sink           audiosink.AudioSinkSession
}

// buildStreamInfo parses an ANNOUNCE body's SDP and assembles the decoder,
// optional cipher, and sink session it describes.
func buildStreamInfo(body []byte, sink audiosink.AudioSink) (*StreamInfo, error) {
	sd := sdp.SessionDescription{}
	if err := sdp.Unmarshal(body, sd); err != nil {
		return nil, fmt.Errorf("raop: parse sdp: %w", err)
	}

	mds, err := sd.MediaDescriptions()
	if err != nil {
		return nil, fmt.Errorf("raop: parse sdp media: %w", err)
	}
	if len(mds) != 1 {
		return nil, fmt.Errorf("raop: expected exactly one media description, got %d", len(mds))
	}

	const payloadType = 96
	rtpmap, ok := sd.RtpMap(payloadType)
	if !ok {
		return nil, fmt.Errorf("raop: no rtpmap for payload type %d", payloadType)
	}

	var dec decoder.Decoder
	switch rtpmap.Name {
	case "AppleLossless":
		fmtp, ok := sd.Fmtp(payloadType)
		if !ok {
			return nil, fmt.Errorf("raop: AppleLossless rtpmap without fmtp")
		}
		cookie, err := alac.ParseFmtp(fmt.Sprintf("%d %s", payloadType, fmtp))
		if err != nil {
			return nil, fmt.Errorf("raop: parse alac fmtp: %w", err)
		}
		dec, err = alac.New(cookie)
		if err != nil {
			return nil, fmt.Errorf("raop: build alac decoder: %w", err)
		}
	case "L16":
		channels := rtpmap.Channels
		if channels == 0 {
			channels = 2
		}
		dec = decoder.NewRawPCM(decoder.FormatS16BE, uint8(channels), uint32(rtpmap.ClockRate))
	default:
		return nil, fmt.Errorf("%w: %w: %q", ErrFatal, ErrUnknownCodec, rtpmap.Name)
	}

	var cipher *raopcrypto.Cipher
	aesKeyB64, hasKey := sd.Attribute("rsaaeskey")
	aesIVB64, hasIV := sd.Attribute("aesiv")
	if hasKey && hasIV {
		cipher, err = buildCipher(aesKeyB64, aesIVB64)
		if err != nil {
			return nil, fmt.Errorf("raop: build cipher: %w", err)
		}
	}

	sinkSession, err := sink.Start(dec.Channels(), dec.Rate(), toSinkFormat(dec.Format()))
	if err != nil {
		// The sink backend refusing to start is a server-side resource
		// failure, not malformed client input: spec.md §7's Internal class.
		return nil, fmt.Errorf("%w: raop: open audio sink: %w", ErrInternal, err)
	}

	return &StreamInfo{
		RTPPayloadType: payloadType,
		Decoder:        dec,
		Cipher:         cipher,
		Sink:           sinkSession,
	}, nil
}

func buildCipher(aesKeyB64, aesIVB64 string) (*raopcrypto.Cipher, error) {
	wrappedKey, err := base64.StdEncoding.DecodeString(aesKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode rsaaeskey: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(aesIVB64)
	if err != nil {
		return nil, fmt.Errorf("decode aesiv: %w", err)
	}
	return raopcrypto.NewCipher(wrappedKey, iv)
}

func toSinkFormat(f decoder.AudioFormat) audiosink.AudioFormat {
	if f == decoder.FormatS16BE {
		return audiosink.FormatS16BE
	}
	return audiosink.FormatS16NE
}
