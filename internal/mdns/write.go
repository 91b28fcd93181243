package mdns

import (
	"bytes"
	"encoding/binary"
)

// Write serializes p into DNS wire format. Per spec.md §4.8, names are
// always written out in full: no pointer compression on the emit side
// (only the parser needs to understand compression, for interoperating
// with senders that use it).
func (p *Packet) Write() []byte {
	var buf bytes.Buffer

	var flags uint16
	if !p.IsQuery {
		flags |= 0x8000
	}

	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], p.ID)
	binary.BigEndian.PutUint16(header[2:4], flags)
	binary.BigEndian.PutUint16(header[4:6], uint16(len(p.Questions)))
	binary.BigEndian.PutUint16(header[6:8], uint16(len(p.Answers)))
	binary.BigEndian.PutUint16(header[8:10], uint16(len(p.Authority)))
	binary.BigEndian.PutUint16(header[10:12], uint16(len(p.Additional)))
	buf.Write(header)

	for _, q := range p.Questions {
		writeName(&buf, q.Name)
		class := q.Class
		if q.UnicastResponse {
			class |= classUnicastHint
		}
		writeUint16(&buf, uint16(q.Type))
		writeUint16(&buf, class)
	}

	writeRecords(&buf, p.Answers)
	writeRecords(&buf, p.Authority)
	writeRecords(&buf, p.Additional)

	return buf.Bytes()
}

func writeRecords(buf *bytes.Buffer, recs []Record) {
	for _, r := range recs {
		writeName(buf, r.Name)
		writeUint16(buf, uint16(r.Type))
		// Cache-flush bit set on every record this server emits, per
		// spec.md §4.8 ("the top bit of the class field is set").
		writeUint16(buf, r.Class|classCacheFlush)
		writeUint32(buf, r.TTL)

		var rdata bytes.Buffer
		switch r.Type {
		case TypeA:
			rdata.Write(r.A[:])
		case TypeAAAA:
			rdata.Write(r.AAAA[:])
		case TypePTR:
			writeName(&rdata, r.PTR)
		case TypeSRV:
			writeUint16(&rdata, r.SRV.Priority)
			writeUint16(&rdata, r.SRV.Weight)
			writeUint16(&rdata, r.SRV.Port)
			writeName(&rdata, r.SRV.Target)
		case TypeTXT:
			for _, s := range r.TXT {
				rdata.WriteByte(byte(len(s)))
				rdata.WriteString(s)
			}
		default:
			rdata.Write(r.Other)
		}

		writeUint16(buf, uint16(rdata.Len()))
		buf.Write(rdata.Bytes())
	}
}

func writeName(buf *bytes.Buffer, labels []string) {
	for _, l := range labels {
		buf.WriteByte(byte(len(l)))
		buf.WriteString(l)
	}
	buf.WriteByte(0)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
