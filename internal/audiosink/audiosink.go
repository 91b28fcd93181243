// Package audiosink provides the pluggable PCM output abstraction RAOP
// sessions write decoded audio to. The concrete backend is chosen by name
// at process start (see SPEC_FULL §1/§2.3); only the dummy, log-based
// backend is fully implemented here, mirroring the teacher's pattern of
// keeping concrete device I/O behind a small interface (audio.AudioWriter
// in the teacher repo) and doing the interesting work above it.
package audiosink

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUnsupportedSink is returned by backends that are recognized by name
// but not wired to a real output device in this build.
var ErrUnsupportedSink = errors.New("audiosink: backend not available in this build")

// AudioFormat mirrors the PCM sample layout a Decoder advertises, so a
// Sink knows how to play back the bytes it's handed.
type AudioFormat int

const (
	FormatS16BE AudioFormat = iota
	FormatS16NE
)

// AudioSink starts playback sessions for a chosen backend. Implementations
// must be safe for concurrent Start calls; each AudioSinkSession then owns
// and serializes writes for exactly one RAOP session's lifetime.
type AudioSink interface {
	Start(channels uint8, rate uint32, format AudioFormat) (AudioSinkSession, error)
	Close() error
}

// AudioSinkSession accepts PCM byte writes in the format declared at Start.
type AudioSinkSession interface {
	Write(pcm []byte) error
	Close() error
}

// Open constructs the named backend. "dummy" logs write sizes at trace
// level and discards the audio; other names are accepted (so an operator
// can select them without a config error) but return ErrUnsupportedSink
// the first time a session tries to use them, since this build has no
// concrete device bindings (rodio/pulseaudio are out of scope per the
// expanded spec's audio-sink component).
func Open(name string, logger zerolog.Logger) (AudioSink, error) {
	switch name {
	case "", "dummy":
		return newDummySink(logger), nil
	case "rodio":
		return &unsupportedSink{name: name}, nil
	case "pulseaudio":
		return &unsupportedSink{name: name}, nil
	default:
		return nil, fmt.Errorf("audiosink: unknown backend %q", name)
	}
}

type unsupportedSink struct {
	name string
}

func (s *unsupportedSink) Start(uint8, uint32, AudioFormat) (AudioSinkSession, error) {
	return nil, fmt.Errorf("audiosink: backend %q: %w", s.name, ErrUnsupportedSink)
}

func (s *unsupportedSink) Close() error { return nil }

// dummySink discards audio, logging each session's lifecycle and write
// volume. It is safe to share across concurrently started sessions: all
// state is per-session, and the shared logger is safe for concurrent use.
type dummySink struct {
	logger zerolog.Logger
}

func newDummySink(logger zerolog.Logger) *dummySink {
	return &dummySink{logger: logger.With().Str("sink", "dummy").Logger()}
}

func (s *dummySink) Start(channels uint8, rate uint32, format AudioFormat) (AudioSinkSession, error) {
	sess := &dummySession{
		logger:   s.logger.With().Uint8("channels", channels).Uint32("rate", rate).Logger(),
		channels: channels,
		rate:     rate,
		format:   format,
	}
	sess.logger.Debug().Msg("audio sink session opened")
	return sess, nil
}

func (s *dummySink) Close() error {
	return nil
}

type dummySession struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	channels uint8
	rate     uint32
	format   AudioFormat
	bytes    uint64
	closed   bool
}

func (s *dummySession) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("audiosink: write to closed session")
	}
	s.bytes += uint64(len(pcm))
	s.logger.Trace().Int("bytes", len(pcm)).Msg("pcm frame discarded")
	return nil
}

func (s *dummySession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug().Uint64("total_bytes", s.bytes).Msg("audio sink session closed")
	return nil
}
