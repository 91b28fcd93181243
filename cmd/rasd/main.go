// Command rasd is an AirPlay 1 (RAOP) audio receiver: it advertises a
// _raop._tcp service over mDNS and accepts RTSP/RTP sessions from AirPlay
// senders, decoding and handing the resulting PCM to a pluggable sink.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dlunch/ras/internal/audiosink"
	"github.com/dlunch/ras/internal/listener"
	"github.com/dlunch/ras/internal/mdns"
)

func main() {
	serverName := flag.String("server-name", "ras", "advertised server name")
	audioSink := flag.String("audio-sink", "rodio", "audio output backend: dummy, rodio, pulseaudio")
	port := flag.Int("port", 7000, "RTSP listen port")
	mdnsPort := flag.Int("mdns-port", mdns.DefaultPort, "mDNS UDP port (overridable for testability)")
	logLevel := flag.String("log-level", "", "log level, overrides LOG_LEVEL env var")
	flag.Parse()

	lev, err := zerolog.ParseLevel(firstNonEmpty(*logLevel, os.Getenv("LOG_LEVEL")))
	if err != nil || lev == zerolog.NoLevel {
		lev = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.StampMicro,
	}).With().Timestamp().Logger().Level(lev)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, *serverName, *audioSink, *port, *mdnsPort); err != nil {
		log.Fatal().Err(err).Msg("rasd exited with error")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func run(ctx context.Context, serverName, sinkName string, port, mdnsPort int) error {
	mac, err := firstHardwareAddr()
	if err != nil {
		return fmt.Errorf("startup: determine mac address: %w", err)
	}

	sink, err := audiosink.Open(sinkName, log.Logger)
	if err != nil {
		return fmt.Errorf("startup: open audio sink: %w", err)
	}

	l, err := listener.New(fmt.Sprintf(":%d", port), sink, mac, log.Logger)
	if err != nil {
		return fmt.Errorf("startup: bind rtsp listener: %w", err)
	}

	instanceName := fmt.Sprintf("%s@%s", strings.ToUpper(strings.ReplaceAll(mac.String(), ":", "")), serverName)
	services := []mdns.Service{{
		Type: "_raop._tcp.local",
		Name: instanceName,
		Port: uint16(port),
		TXT: []string{
			"txtvers=1",
			"md=0,1,2",
			"ss=16",
			"sr=44100",
			"ch=2",
			"et=0,1",
			"cn=0,1",
			"pw=false",
			"tp=UDP",
			"vn=65537",
		},
	}}

	responder, err := mdns.New(services, mdnsPort, log.Logger)
	if err != nil {
		return fmt.Errorf("startup: join mdns group: %w", err)
	}

	log.Info().Str("service", instanceName).Int("port", port).Msg("rasd starting")

	errCh := make(chan error, 2)
	go func() { errCh <- l.Serve(ctx) }()
	go func() { errCh <- responder.Run(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func firstHardwareAddr() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 6 {
			return iface.HardwareAddr, nil
		}
	}
	return nil, fmt.Errorf("no interface with a hardware address found")
}
