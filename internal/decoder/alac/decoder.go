// Package alac parses the ALAC (Apple Lossless) magic cookie negotiated in
// SETUP's SDP fmtp attribute. The bitstream decode itself is out of scope:
// spec.md §1 treats the ALAC decoder proper as an external collaborator,
// specified only by the Decoder interface in §6 — the reference
// implementation delegates it entirely to symphonia's AlacDecoder
// (original_source/src/decoder/mod.rs) rather than implementing it.
// No Go ALAC decoder exists in the dependency pack this module draws
// from, so Decode is stubbed the same way internal/audiosink stubs the
// rodio/pulseaudio backends it has no bindings for: recognized, wired up
// to real channel/rate metadata from the cookie, and explicit about not
// producing audio in this build (see DESIGN.md).
package alac

import (
	"errors"

	"github.com/dlunch/ras/internal/decoder"
)

// ErrUnsupportedChannels is returned for channel counts beyond mono/stereo,
// which covers every AirPlay 1 source in practice.
var ErrUnsupportedChannels = errors.New("alac: only mono and stereo are supported")

// ErrDecodeUnavailable is returned by Decode: this build parses the ALAC
// magic cookie (channel count, sample rate, frame length) but has no
// bitstream decoder wired in, matching the audio-sink component's
// treatment of backends with no concrete binding.
var ErrDecodeUnavailable = errors.New("alac: bitstream decode not available in this build")

// Decoder exposes the channel/rate/format metadata negotiated by a SETUP's
// magic cookie. It satisfies decoder.Decoder so the raop session can treat
// ALAC and raw PCM streams uniformly up through sink.Start.
type Decoder struct {
	cookie *MagicCookie
}

// New builds a Decoder from a parsed magic cookie.
func New(cookie *MagicCookie) (*Decoder, error) {
	if cookie.NumChannels != 1 && cookie.NumChannels != 2 {
		return nil, ErrUnsupportedChannels
	}
	return &Decoder{cookie: cookie}, nil
}

func (d *Decoder) Channels() uint8             { return d.cookie.NumChannels }
func (d *Decoder) Rate() uint32                { return d.cookie.SampleRate }
func (d *Decoder) Format() decoder.AudioFormat { return decoder.FormatS16NE }

// Decode always fails: see the package doc comment. A session's data
// plane drops the packet and logs at trace level, the same "DecodeDropped"
// policy spec.md §7 already gives any other decode failure.
func (d *Decoder) Decode(frame []byte) ([]byte, error) {
	return nil, ErrDecodeUnavailable
}
