package mdns

import (
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testResponder(t *testing.T) *Responder {
	t.Helper()
	_, cidr, _ := net.ParseCIDR("192.168.1.0/24")
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &Responder{
		hostname: "ras.local",
		ifaces:   []ifaceAddr{{ip: net.IPv4(192, 168, 1, 50), net: cidr}},
		services: []Service{{
			Type: "_raop._tcp.local",
			Name: "001122334455@ras",
			Port: 7000,
			TXT:  []string{"txtvers=1", "ch=2"},
		}},
		port: DefaultPort,
		conn: conn,
		log:  zerolog.Nop(),
	}
}

func TestAddressForMatchingInterface(t *testing.T) {
	r := testResponder(t)
	ip := r.addressFor(net.IPv4(192, 168, 1, 200))
	require.NotNil(t, ip)
	require.True(t, ip.Equal(net.IPv4(192, 168, 1, 50)))
}

func TestAddressForNoMatch(t *testing.T) {
	r := testResponder(t)
	require.Nil(t, r.addressFor(net.IPv4(10, 0, 0, 1)))
}

func TestBuildAnswerGroup(t *testing.T) {
	r := testResponder(t)
	svc := r.services[0]
	localIP := net.IPv4(192, 168, 1, 50)

	answers, additionals := r.buildAnswerGroup(svc, localIP)
	require.Len(t, answers, 1)
	require.Equal(t, TypePTR, answers[0].Type)
	require.Equal(t, SplitName("_raop._tcp.local"), answers[0].Name)

	require.Len(t, additionals, 3)
	require.Equal(t, TypeSRV, additionals[0].Type)
	require.Equal(t, uint16(7000), additionals[0].SRV.Port)
	require.Equal(t, TypeTXT, additionals[1].Type)
	require.Equal(t, []string{"txtvers=1", "ch=2"}, additionals[1].TXT)
	require.Equal(t, TypeA, additionals[2].Type)
	require.Equal(t, [4]byte{192, 168, 1, 50}, additionals[2].A)
}

func TestBuildAnswerGroupSuppressedWithoutMatchingInterface(t *testing.T) {
	r := testResponder(t)
	answers, additionals := r.buildAnswerGroup(r.services[0], nil)
	require.Nil(t, answers)
	require.Nil(t, additionals)
}

func TestHandleQueryBuildsAnswerForKnownServiceType(t *testing.T) {
	r := testResponder(t)

	q := Packet{
		ID:      42,
		IsQuery: true,
		Questions: []Question{{
			Name: SplitName("_raop._tcp.local"), Type: TypePTR, Class: classIN,
		}},
	}
	data := q.Write()

	// handleQuery logs/sends; exercise it directly to make sure it doesn't
	// panic on a query with no bound socket (conn is nil in this fixture).
	require.NotPanics(t, func() {
		r.handleQuery(data, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 200), Port: 5353})
	})
}
