// Package decoder defines the pluggable "compressed frame in, PCM out"
// abstraction RAOP sessions decode audio through, plus the raw L16
// (clear PCM) implementation. The ALAC implementation lives in the
// alac subpackage.
package decoder

// AudioFormat is the PCM sample layout a Decoder produces.
type AudioFormat int

const (
	// FormatS16BE is signed 16-bit big-endian, interleaved.
	FormatS16BE AudioFormat = iota
	// FormatS16NE is signed 16-bit native-endian, interleaved.
	FormatS16NE
)

// Decoder turns one compressed frame into interleaved PCM bytes. It is
// stateful (ALAC carries frame-to-frame predictor state) and must only
// ever be driven from the single task that owns the RAOP session's RTP
// loop, matching spec.md §4.4 / §5.
type Decoder interface {
	Channels() uint8
	Rate() uint32
	Format() AudioFormat
	Decode(frame []byte) ([]byte, error)
}

// RawPCM is the identity decoder used for clear L16 test streams: the
// wire payload already is the PCM the sink expects.
type RawPCM struct {
	format   AudioFormat
	channels uint8
	rate     uint32
}

// NewRawPCM builds a decoder for already-decoded PCM in the given format.
func NewRawPCM(format AudioFormat, channels uint8, rate uint32) *RawPCM {
	return &RawPCM{format: format, channels: channels, rate: rate}
}

func (d *RawPCM) Channels() uint8      { return d.channels }
func (d *RawPCM) Rate() uint32         { return d.rate }
func (d *RawPCM) Format() AudioFormat  { return d.format }
func (d *RawPCM) Decode(frame []byte) ([]byte, error) {
	return frame, nil
}
