package envelope

import (
	"bytes"
	"testing"

	"github.com/danmuck/prism/internal/protocol"
)

func FuzzRoundTrip(f *testing.F) {
	f.Add(uint32(0), []byte{})
	f.Add(uint32(42), []byte("hello"))
	f.Add(uint32(0xFFFFFFFF), make([]byte, 1000))

	plain := NewPlain()
	sealed := sealedCodec(f, testKey)

	f.Fuzz(func(t *testing.T, seq uint32, payload []byte) {
		for _, c := range []*Codec{plain, sealed} {
			wire, err := c.Encode(Frame{Type: protocol.TypeData, Seq: seq, Payload: payload})
			if err != nil {
				t.Skip()
			}
			out, err := c.Decode(wire)
			if err != nil {
				t.Fatalf("%s decode: %v", c.Mode(), err)
			}
			if out.Seq != seq || !bytes.Equal(out.Payload, payload) {
				t.Fatalf("%s round trip failed", c.Mode())
			}
		}
	})
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{2, 0, 0, 0, 1})
	f.Add([]byte{1, 0, 0, 0, 1, 0, 0, 0, 0})
	f.Add(make([]byte, MinSealedLen))

	plain := NewPlain()
	sealed := sealedCodec(f, testKey)

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, c := range []*Codec{plain, sealed} {
			out, err := c.Decode(data)
			if err != nil {
				continue
			}
			// Anything that decodes must re-encode to an equivalent frame.
			if out.Type == protocol.TypeData {
				again, err := c.Encode(Frame{Type: out.Type, Seq: out.Seq, Payload: out.Payload})
				if err != nil {
					t.Fatalf("%s re-encode: %v", c.Mode(), err)
				}
				back, err := c.Decode(again)
				if err != nil || !bytes.Equal(back.Payload, out.Payload) {
					t.Fatalf("%s re-decode mismatch: %v", c.Mode(), err)
				}
			}
		}
	})
}
