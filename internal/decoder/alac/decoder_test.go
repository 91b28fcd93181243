package alac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dlunch/ras/internal/decoder"
)

func stereoCookie() *MagicCookie {
	return &MagicCookie{
		FrameLength: 4096, BitDepth: 16, PB: 40, MB: 10, KB: 14,
		NumChannels: 2, SampleRate: 44100,
	}
}

func TestNewExposesCookieMetadata(t *testing.T) {
	d, err := New(stereoCookie())
	require.NoError(t, err)
	require.Equal(t, uint8(2), d.Channels())
	require.Equal(t, uint32(44100), d.Rate())
	require.Equal(t, decoder.FormatS16NE, d.Format())
}

func TestNewRejectsUnsupportedChannelCount(t *testing.T) {
	cookie := stereoCookie()
	cookie.NumChannels = 6
	_, err := New(cookie)
	require.ErrorIs(t, err, ErrUnsupportedChannels)
}

func TestDecodeIsUnavailable(t *testing.T) {
	d, err := New(stereoCookie())
	require.NoError(t, err)

	_, err = d.Decode([]byte{0x00, 0x01, 0x02})
	require.ErrorIs(t, err, ErrDecodeUnavailable)
}
