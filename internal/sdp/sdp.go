// Package sdp parses the subset of RFC 4566 SDP that ANNOUNCE bodies
// carry: enough to identify the media description, its rtpmap codec, and
// the AirPlay-specific fmtp/rsaaeskey/aesiv attributes.
package sdp

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// SessionDescription is a type=value multimap, one slice entry per line of
// that type in source order. Unmarshal is intentionally non-validating;
// callers pull out the fields they need and fail if those are absent.
type SessionDescription map[string][]string

func (sd SessionDescription) Values(key string) []string {
	return sd[key]
}

func (sd SessionDescription) Value(key string) string {
	values := sd[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Unmarshal parses CRLF- or LF-delimited "type=value" lines into sd.
func Unmarshal(data []byte, sd SessionDescription) error {
	reader := bytes.NewBuffer(data)
	for {
		line, err := nextLine(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if len(line) < 2 {
			continue
		}
		ind := strings.Index(line, "=")
		if ind < 1 {
			return fmt.Errorf("sdp: not a type=value line: %q", line)
		}
		key := line[:ind]
		value := line[ind+1:]
		sd[key] = append(sd[key], value)
	}
}

func nextLine(reader *bytes.Buffer) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return line, err
	}
	n := len(line)
	if n >= 2 && line[n-2] == '\r' {
		return line[:n-2], nil
	}
	return line[:n-1], nil
}

// MediaDescription holds the single "m=" line ANNOUNCE's audio description
// carries: type, port, transport, and the payload type format list.
type MediaDescription struct {
	MediaType string
	Port      int
	Proto     string
	Formats   []string
}

// MediaDescriptions returns all "m=" lines parsed into MediaDescription.
func (sd SessionDescription) MediaDescriptions() ([]MediaDescription, error) {
	var out []MediaDescription
	for _, v := range sd.Values("m") {
		fields := strings.Fields(v)
		if len(fields) < 4 {
			return nil, fmt.Errorf("sdp: malformed media description %q", v)
		}
		port := 0
		fmt.Sscanf(fields[1], "%d", &port)
		out = append(out, MediaDescription{
			MediaType: fields[0],
			Port:      port,
			Proto:     fields[2],
			Formats:   fields[3:],
		})
	}
	return out, nil
}

// Attribute returns the value of the first "a=<name>:..." or bare
// "a=<name>" line, and whether it was present at all.
func (sd SessionDescription) Attribute(name string) (string, bool) {
	for _, v := range sd.Values("a") {
		if v == name {
			return "", true
		}
		prefix := name + ":"
		if strings.HasPrefix(v, prefix) {
			return v[len(prefix):], true
		}
	}
	return "", false
}

// RtpMap finds the "a=rtpmap:<payloadType> <name>/<clock>[/<channels>]"
// attribute for the given payload type.
type RtpMap struct {
	PayloadType int
	Name        string
	ClockRate   int
	Channels    int
}

func (sd SessionDescription) RtpMap(payloadType int) (RtpMap, bool) {
	prefix := fmt.Sprintf("rtpmap:%d ", payloadType)
	for _, v := range sd.Values("a") {
		if !strings.HasPrefix(v, prefix) {
			continue
		}
		rest := v[len(prefix):]
		parts := strings.Split(rest, "/")
		rm := RtpMap{PayloadType: payloadType, Name: parts[0], Channels: 1}
		if len(parts) > 1 {
			fmt.Sscanf(parts[1], "%d", &rm.ClockRate)
		}
		if len(parts) > 2 {
			fmt.Sscanf(parts[2], "%d", &rm.Channels)
		}
		return rm, true
	}
	return RtpMap{}, false
}

// Fmtp returns the "a=fmtp:<payloadType> <params>" parameter string.
func (sd SessionDescription) Fmtp(payloadType int) (string, bool) {
	prefix := fmt.Sprintf("fmtp:%d ", payloadType)
	for _, v := range sd.Values("a") {
		if strings.HasPrefix(v, prefix) {
			return v[len(prefix):], true
		}
	}
	return "", false
}
