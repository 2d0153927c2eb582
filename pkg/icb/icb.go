// Package icb implements the ICB wire format: length-prefixed binary
// packets whose payload is a sequence of fields separated by 0x01.
//
// Packet layout: [len:1][tag:1][payload:len-1]. The length byte covers
// the tag and the payload, so a packet body never exceeds 254 bytes.
// Outbound text packets are C-string style: the final field carries a
// trailing NUL.
package icb

import (
	"bytes"
	"errors"
	"strings"
)

const (
	// MaxPacketLen is the largest value the length byte may take.
	MaxPacketLen = 254

	// Separator splits fields inside a packet payload.
	Separator = 0x01
)

// Packet type tags (client→server and server→client).
const (
	TagLogin    = 'a' // c→s login request, s→c login ack (empty)
	TagOpen     = 'b' // open/public message
	TagPersonal = 'c' // private message
	TagStatus   = 'd' // status message: category, text
	TagError    = 'e' // error text
	TagExit     = 'g' // server tells client to terminate
	TagCommand  = 'h' // compound command: name, args, optional message id
	TagCmdOut   = 'i' // generic command output
	TagProto    = 'j' // protocol banner: version, hostname, server id
	TagBeep     = 'k' // beep: from-nick
	TagPing     = 'l'
	TagPong     = 'm'
)

// ErrOverflow is returned when an encoded packet would exceed MaxPacketLen.
var ErrOverflow = errors.New("icb: packet exceeds 254 bytes")

// Encode builds a raw packet from a tag and payload fields. Fields are
// joined with the separator byte; no NUL terminator is added. Returns
// ErrOverflow if tag plus payload exceed the length-byte budget.
func Encode(tag byte, fields ...[]byte) ([]byte, error) {
	size := 1 // tag
	for i, f := range fields {
		if i > 0 {
			size++
		}
		size += len(f)
	}
	if size > MaxPacketLen {
		return nil, ErrOverflow
	}

	buf := make([]byte, 2, size+1)
	buf[0] = byte(size)
	buf[1] = tag
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, Separator)
		}
		buf = append(buf, f...)
	}
	return buf, nil
}

// Split tokenizes a payload on the separator byte. A payload ending in a
// separator yields a trailing empty field.
func Split(payload []byte) [][]byte {
	return bytes.Split(payload, []byte{Separator})
}

// Strings converts raw payload fields to strings, dropping a trailing NUL
// terminator where present.
func Strings(fields [][]byte) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(bytes.TrimRight(f, "\x00"))
	}
	return out
}

// Listener receives one decoded packet.
type Listener func(tag byte, payload []byte)

// Decoder is a streaming packet reassembler. Bytes are accumulated via
// Write; whenever a complete packet is buffered, all registered listeners
// are invoked with its tag and raw payload. A single Write may deliver
// zero, one, or several packets.
type Decoder struct {
	buf       []byte
	listeners []Listener
}

// NewDecoder creates an empty streaming decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Listen registers a packet listener. Listeners run in registration order.
func (d *Decoder) Listen(fn Listener) {
	d.listeners = append(d.listeners, fn)
}

// Write appends data to the internal buffer and drains every complete
// packet it now contains.
func (d *Decoder) Write(data []byte) {
	d.buf = append(d.buf, data...)
	for {
		if len(d.buf) < 1 {
			return
		}
		size := int(d.buf[0])
		if size == 0 {
			// A zero length carries no tag; skip the stray byte.
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < 1+size {
			return
		}

		tag := d.buf[1]
		payload := make([]byte, size-1)
		copy(payload, d.buf[2:1+size])
		d.buf = d.buf[1+size:]

		for _, fn := range d.listeners {
			fn(tag, payload)
		}
	}
}

// Packet builds an outbound text packet: fields joined by the separator,
// final field NUL-terminated. Over-long payloads are clipped to the packet
// budget rather than rejected, so user-supplied text can never make a
// delivery fail.
func Packet(tag byte, fields ...string) []byte {
	payload := []byte(strings.Join(fields, "\x01"))
	payload = append(payload, 0x00)

	max := MaxPacketLen - 1 // minus tag
	if len(payload) > max {
		payload = payload[:max]
		payload[max-1] = 0x00
	}

	buf := make([]byte, 0, 2+len(payload))
	buf = append(buf, byte(1+len(payload)), tag)
	return append(buf, payload...)
}

// Tag returns the type tag of an encoded packet, or 0 for a malformed one.
func Tag(packet []byte) byte {
	if len(packet) < 2 {
		return 0
	}
	return packet[1]
}

// Status builds a 'd' status packet with a category and text.
func Status(category, text string) []byte {
	return Packet(TagStatus, category, text)
}

// Error builds an 'e' error packet.
func Error(text string) []byte {
	return Packet(TagError, text)
}

// Open builds a 'b' public message packet.
func Open(nick, text string) []byte {
	return Packet(TagOpen, nick, text)
}

// Personal builds a 'c' private message packet.
func Personal(nick, text string) []byte {
	return Packet(TagPersonal, nick, text)
}

// Beep builds a 'k' beep packet.
func Beep(nick string) []byte {
	return Packet(TagBeep, nick)
}

// LoginOK builds the empty 'a' login acknowledgement.
func LoginOK() []byte {
	return Packet(TagLogin)
}

// Exit builds the 'g' quit packet; its receipt tells the client to close.
func Exit() []byte {
	return Packet(TagExit)
}

// Proto builds the 'j' banner sent on connect.
func Proto(version, hostname, serverID string) []byte {
	return Packet(TagProto, version, hostname, serverID)
}

// Ping builds an empty 'l' keepalive probe.
func Ping() []byte {
	return Packet(TagPing)
}

// Pong builds an empty 'm' keepalive reply.
func Pong() []byte {
	return Packet(TagPong)
}

// CmdOut builds an 'i' generic output packet.
func CmdOut(fields ...string) []byte {
	return Packet(TagCmdOut, fields...)
}
