package icb

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		tag    byte
		fields [][]byte
	}{
		{"no fields", TagLogin, nil},
		{"one field", TagOpen, [][]byte{[]byte("hello")}},
		{"two fields", TagStatus, [][]byte{[]byte("Arrive"), []byte("alice entered")}},
		{"empty field", TagCommand, [][]byte{[]byte("g"), {}}},
		{"three fields", TagCommand, [][]byte{[]byte("m"), []byte("bob hi"), []byte("42")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := Encode(tt.tag, tt.fields...)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if int(pkt[0]) != len(pkt)-1 {
				t.Errorf("length byte = %d, want %d", pkt[0], len(pkt)-1)
			}
			if pkt[1] != tt.tag {
				t.Errorf("tag = %c, want %c", pkt[1], tt.tag)
			}

			got := Split(pkt[2:])
			want := tt.fields
			if len(want) == 0 {
				// An empty payload splits into one empty field.
				want = [][]byte{{}}
			}
			if len(got) != len(want) {
				t.Fatalf("Split() yielded %d fields, want %d", len(got), len(want))
			}
			for i := range want {
				if !bytes.Equal(got[i], want[i]) {
					t.Errorf("field %d = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestEncodeOverflow(t *testing.T) {
	// 253 payload bytes + tag = 254: the largest legal packet.
	ok := bytes.Repeat([]byte("x"), 253)
	if _, err := Encode(TagOpen, ok); err != nil {
		t.Errorf("Encode(253 bytes) error = %v, want nil", err)
	}

	big := bytes.Repeat([]byte("x"), 254)
	if _, err := Encode(TagOpen, big); err != ErrOverflow {
		t.Errorf("Encode(254 bytes) error = %v, want ErrOverflow", err)
	}

	// Separators count against the budget too.
	half := bytes.Repeat([]byte("x"), 127)
	if _, err := Encode(TagOpen, half, half); err != ErrOverflow {
		t.Errorf("Encode(127+1+127 bytes) error = %v, want ErrOverflow", err)
	}
}

func TestSplitTrailingSeparator(t *testing.T) {
	fields := Split([]byte("a\x01b\x01"))
	if len(fields) != 3 {
		t.Fatalf("Split() yielded %d fields, want 3", len(fields))
	}
	if len(fields[2]) != 0 {
		t.Errorf("trailing field = %q, want empty", fields[2])
	}
}

func TestDecoderReassembly(t *testing.T) {
	packets := [][]byte{}
	for _, text := range []string{"first", "second", "third", "fourth"} {
		pkt, err := Encode(TagOpen, []byte("nick"), []byte(text))
		if err != nil {
			t.Fatal(err)
		}
		packets = append(packets, pkt)
	}
	stream := bytes.Join(packets, nil)

	chunkSizes := []int{1, 2, 3, 5, 7, len(stream)}
	for _, chunk := range chunkSizes {
		var got []string
		d := NewDecoder()
		d.Listen(func(tag byte, payload []byte) {
			if tag != TagOpen {
				t.Errorf("chunk %d: tag = %c, want %c", chunk, tag, TagOpen)
			}
			got = append(got, string(Split(payload)[1]))
		})

		for i := 0; i < len(stream); i += chunk {
			end := i + chunk
			if end > len(stream) {
				end = len(stream)
			}
			d.Write(stream[i:end])
		}

		want := []string{"first", "second", "third", "fourth"}
		if len(got) != len(want) {
			t.Fatalf("chunk %d: %d packets decoded, want %d", chunk, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk %d: packet %d = %q, want %q", chunk, i, got[i], want[i])
			}
		}
	}
}

func TestDecoderMultipleListeners(t *testing.T) {
	d := NewDecoder()
	var first, second int
	d.Listen(func(byte, []byte) { first++ })
	d.Listen(func(byte, []byte) { second++ })

	pkt, _ := Encode(TagPing)
	d.Write(pkt)
	d.Write(pkt)

	if first != 2 || second != 2 {
		t.Errorf("listener calls = %d/%d, want 2/2", first, second)
	}
}

func TestDecoderSkipsZeroLength(t *testing.T) {
	d := NewDecoder()
	var count int
	d.Listen(func(byte, []byte) { count++ })

	pkt, _ := Encode(TagPing)
	d.Write([]byte{0})
	d.Write(pkt)

	if count != 1 {
		t.Errorf("decoded %d packets, want 1", count)
	}
}

func TestPacketNulTerminated(t *testing.T) {
	pkt := Status("Arrive", "alice entered")
	if pkt[len(pkt)-1] != 0 {
		t.Error("final field not NUL-terminated")
	}
	fields := Strings(Split(pkt[2:]))
	if fields[0] != "Arrive" || fields[1] != "alice entered" {
		t.Errorf("fields = %v", fields)
	}
}

func TestPacketClipsOversizedText(t *testing.T) {
	pkt := Error(strings.Repeat("y", 1000))
	if len(pkt)-1 > MaxPacketLen {
		t.Fatalf("packet body = %d bytes, want <= %d", len(pkt)-1, MaxPacketLen)
	}
	if int(pkt[0]) != len(pkt)-1 {
		t.Errorf("length byte = %d, want %d", pkt[0], len(pkt)-1)
	}
	if pkt[len(pkt)-1] != 0 {
		t.Error("clipped packet lost its NUL terminator")
	}
}

func TestTag(t *testing.T) {
	if got := Tag(Exit()); got != TagExit {
		t.Errorf("Tag() = %c, want %c", got, TagExit)
	}
	if got := Tag(nil); got != 0 {
		t.Errorf("Tag(nil) = %d, want 0", got)
	}
}
