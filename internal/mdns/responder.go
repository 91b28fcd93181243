package mdns

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
)

// MulticastGroup is the standard mDNS multicast group address.
const MulticastGroup = "224.0.0.251"

// DefaultPort is the standard mDNS port. Overridable per Responder (New's
// port argument) so tests can bind without colliding with a real mDNS
// responder already running on the host.
const DefaultPort = 5353

const ttl = 3600

// Service is one advertised DNS-SD service. It is immutable after
// construction, per spec.md §5.
type Service struct {
	Type string   // e.g. "_raop._tcp.local"
	Name string   // instance label, e.g. "001122334455@ras"
	Port uint16
	TXT  []string
}

// ifaceAddr pairs an interface's IPv4 address with its network, used for
// address-selection when answering a query (spec.md §4.9).
type ifaceAddr struct {
	ip  net.IP
	net *net.IPNet
}

// Responder answers mDNS queries for its configured services. It owns one
// multicast socket per interface plus the shared receive loop.
type Responder struct {
	hostname string
	services []Service
	ifaces   []ifaceAddr
	port     int
	conn     *net.UDPConn
	pconn    *ipv4.PacketConn
	log      zerolog.Logger
}

// New resolves the local hostname, enumerates IPv4 interfaces, and joins
// the multicast group on each of them. port selects the UDP port bound for
// both the multicast socket and outgoing replies; 0 means DefaultPort
// (overriding it is for testability, per SPEC_FULL §2.3).
func New(services []Service, port int, log zerolog.Logger) (*Responder, error) {
	if port == 0 {
		port = DefaultPort
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("mdns: resolve hostname: %w", err)
	}
	if !strings.HasSuffix(hostname, ".local") {
		hostname += ".local"
	}

	ifaces, err := collectInterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("mdns: enumerate interfaces: %w", err)
	}

	groupAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", MulticastGroup, port))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: groupAddr.Port})
	if err != nil {
		return nil, fmt.Errorf("mdns: bind multicast socket: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)
	pconn.SetMulticastLoopback(false)
	if err := pconn.SetReadBuffer(2048); err != nil {
		log.Warn().Err(err).Msg("failed to set mdns read buffer size")
	}

	netIfaces, _ := net.Interfaces()
	for _, ni := range netIfaces {
		if ni.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := pconn.JoinGroup(&ni, groupAddr); err != nil {
			log.Debug().Err(err).Str("interface", ni.Name).Msg("failed to join mdns group on interface")
		}
	}

	return &Responder{
		hostname: hostname,
		services: services,
		ifaces:   ifaces,
		port:     port,
		conn:     conn,
		pconn:    pconn,
		log:      log,
	}, nil
}

func collectInterfaceAddrs() ([]ifaceAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []ifaceAddr
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			out = append(out, ifaceAddr{ip: ip4, net: &net.IPNet{IP: ip4, Mask: ipnet.Mask}})
		}
	}
	return out, nil
}

// Run blocks, handling queries until ctx is cancelled. The receive loop is
// a blocking recv and is intended to run on its own goroutine (spec.md
// §5: "must run on a dedicated ... thread / blocking-task pool").
func (r *Responder) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.conn.Close()
	}()

	buf := make([]byte, 2048)
	for {
		n, _, src, err := r.pconn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn().Err(err).Msg("mdns read failed")
			continue
		}
		udpSrc, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}
		r.handleQuery(buf[:n], udpSrc)
	}
}

// handleQuery parses one datagram and, for every matching PTR question,
// builds and sends an answer group either unicast or multicast.
func (r *Responder) handleQuery(data []byte, src *net.UDPAddr) {
	pkt, err := Parse(data)
	if err != nil {
		r.log.Trace().Err(err).Msg("dropping unparseable mdns packet")
		return
	}
	if !pkt.IsQuery {
		return
	}

	localIP := r.addressFor(src.IP)

	var unicastAnswers, multicastAnswers []Record
	var unicastAdditional, multicastAdditional []Record
	wantUnicast, wantMulticast := false, false

	for _, q := range pkt.Questions {
		if q.Type != TypePTR {
			continue
		}
		name := JoinLabels(q.Name)
		for _, svc := range r.services {
			if !strings.EqualFold(name, svc.Type) {
				continue
			}
			answers, additionals := r.buildAnswerGroup(svc, localIP)
			if q.UnicastResponse {
				wantUnicast = true
				unicastAnswers = append(unicastAnswers, answers...)
				unicastAdditional = append(unicastAdditional, additionals...)
			} else {
				wantMulticast = true
				multicastAnswers = append(multicastAnswers, answers...)
				multicastAdditional = append(multicastAdditional, additionals...)
			}
		}
	}

	if wantUnicast {
		r.sendUnicast(pkt.ID, unicastAnswers, unicastAdditional, src)
	}
	if wantMulticast {
		r.sendMulticast(pkt.ID, multicastAnswers, multicastAdditional)
	}
}

// buildAnswerGroup builds the PTR answer plus SRV/TXT/A additionals for
// one service, per spec.md §4.9. localIP may be nil if no interface
// matched the querying address, in which case the A record is omitted
// (the caller still gets PTR/SRV/TXT but spec.md says to suppress entirely
// when no address is available — handled by the caller checking nil).
func (r *Responder) buildAnswerGroup(svc Service, localIP net.IP) ([]Record, []Record) {
	if localIP == nil {
		return nil, nil
	}

	typeLabels := SplitName(svc.Type)
	instanceName := append(SplitName(svc.Name), typeLabels...)

	answers := []Record{{
		Name: typeLabels, Type: TypePTR, Class: classIN, TTL: ttl,
		PTR: instanceName,
	}}

	hostLabels := SplitName(r.hostname)
	var additionals []Record
	additionals = append(additionals, Record{
		Name: instanceName, Type: TypeSRV, Class: classIN, TTL: ttl,
		SRV: SRVData{Priority: 0, Weight: 0, Port: svc.Port, Target: hostLabels},
	})
	if len(svc.TXT) > 0 {
		additionals = append(additionals, Record{
			Name: instanceName, Type: TypeTXT, Class: classIN, TTL: ttl,
			TXT: svc.TXT,
		})
	}
	var a [4]byte
	copy(a[:], localIP.To4())
	additionals = append(additionals, Record{
		Name: hostLabels, Type: TypeA, Class: classIN, TTL: ttl,
		A: a,
	})

	return answers, additionals
}

// addressFor finds the first configured interface whose CIDR contains ip,
// returning that interface's own address (spec.md §4.9's "interface-
// appropriate" address selection). Returns nil if no interface matches.
func (r *Responder) addressFor(ip net.IP) net.IP {
	for _, ifc := range r.ifaces {
		if ifc.net.Contains(ip) {
			return ifc.ip
		}
	}
	return nil
}

func (r *Responder) sendMulticast(id uint16, answers, additional []Record) {
	if len(answers) == 0 {
		return
	}
	pkt := Packet{ID: id, IsQuery: false, Answers: answers, Additional: additional}
	dst, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", MulticastGroup, r.port))
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to resolve mdns multicast address")
		return
	}
	if _, err := r.conn.WriteToUDP(pkt.Write(), dst); err != nil {
		r.log.Warn().Err(err).Msg("failed to send mdns multicast response")
	}
}

// sendUnicast replies on a freshly bound ephemeral socket, the workaround
// spec.md §9 calls out for not reusing the multicast socket's source
// selection.
func (r *Responder) sendUnicast(id uint16, answers, additional []Record, dst *net.UDPAddr) {
	if len(answers) == 0 {
		return
	}
	pkt := Packet{ID: id, IsQuery: false, Answers: answers, Additional: additional}

	conn, err := net.DialUDP("udp4", nil, dst)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to open mdns unicast reply socket")
		return
	}
	defer conn.Close()
	if _, err := conn.Write(pkt.Write()); err != nil {
		r.log.Warn().Err(err).Msg("failed to send mdns unicast response")
	}
}
