package payload

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers.
const (
	fieldPacketType         protowire.Number = 1
	fieldPacketLogin        protowire.Number = 2
	fieldPacketAuthResponse protowire.Number = 3
	fieldPacketUpdate       protowire.Number = 4

	fieldLoginService protowire.Number = 1
	fieldLoginToken   protowire.Number = 2

	fieldAuthStatus  protowire.Number = 1
	fieldAuthMessage protowire.Number = 2

	fieldUpdateName    protowire.Number = 1
	fieldUpdateValue   protowire.Number = 2
	fieldUpdateType    protowire.Number = 3
	fieldUpdatePersist protowire.Number = 4
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func (m Login) Marshal() []byte {
	var b []byte
	b = appendString(b, fieldLoginService, m.Service)
	b = appendString(b, fieldLoginToken, m.Token)
	return b
}

func (m AuthResponse) Marshal() []byte {
	var b []byte
	b = appendInt32(b, fieldAuthStatus, m.Status)
	b = appendString(b, fieldAuthMessage, m.Message)
	return b
}

func (m Update) Marshal() []byte {
	var b []byte
	b = appendString(b, fieldUpdateName, m.Name)
	b = appendString(b, fieldUpdateValue, m.Value)
	b = appendString(b, fieldUpdateType, m.Type)
	b = appendBool(b, fieldUpdatePersist, m.PersistCache)
	return b
}

// Marshal encodes p. Bodies are written even when empty so the oneof
// survives a round trip.
func (p DataPacket) Marshal() []byte {
	var b []byte
	b = appendInt32(b, fieldPacketType, p.Type)
	switch {
	case p.Login != nil:
		b = appendMessage(b, fieldPacketLogin, p.Login.Marshal())
	case p.AuthResponse != nil:
		b = appendMessage(b, fieldPacketAuthResponse, p.AuthResponse.Marshal())
	case p.Update != nil:
		b = appendMessage(b, fieldPacketUpdate, p.Update.Marshal())
	}
	return b
}

// fieldFunc consumes the value of one field and returns the bytes used. It
// returns -1 when the field is not known to the caller.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		used, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if used < 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
			if used < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(used))
			}
		}
		b = b[used:]
	}
	return nil
}

func consumeString(num protowire.Number, typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("%w: field %d wire type %d", ErrMalformed, num, typ)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

func consumeVarint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: field %d wire type %d", ErrMalformed, num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: field %d wire type %d", ErrMalformed, num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
	}
	return v, n, nil
}

func (m *Login) Unmarshal(b []byte) error {
	*m = Login{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldLoginService:
			return consumeString(num, typ, b, &m.Service)
		case fieldLoginToken:
			return consumeString(num, typ, b, &m.Token)
		}
		return -1, nil
	})
}

func (m *AuthResponse) Unmarshal(b []byte) error {
	*m = AuthResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldAuthStatus:
			v, n, err := consumeVarint(num, typ, b)
			m.Status = int32(v)
			return n, err
		case fieldAuthMessage:
			return consumeString(num, typ, b, &m.Message)
		}
		return -1, nil
	})
}

func (m *Update) Unmarshal(b []byte) error {
	*m = Update{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldUpdateName:
			return consumeString(num, typ, b, &m.Name)
		case fieldUpdateValue:
			return consumeString(num, typ, b, &m.Value)
		case fieldUpdateType:
			return consumeString(num, typ, b, &m.Type)
		case fieldUpdatePersist:
			v, n, err := consumeVarint(num, typ, b)
			m.PersistCache = protowire.DecodeBool(v)
			return n, err
		}
		return -1, nil
	})
}

// Unmarshal decodes b into p. A later oneof body replaces an earlier one.
func (p *DataPacket) Unmarshal(b []byte) error {
	*p = DataPacket{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldPacketType:
			v, n, err := consumeVarint(num, typ, b)
			p.Type = int32(v)
			return n, err
		case fieldPacketLogin, fieldPacketAuthResponse, fieldPacketUpdate:
			body, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			p.Login, p.AuthResponse, p.Update = nil, nil, nil
			switch num {
			case fieldPacketLogin:
				p.Login = &Login{}
				err = p.Login.Unmarshal(body)
			case fieldPacketAuthResponse:
				p.AuthResponse = &AuthResponse{}
				err = p.AuthResponse.Unmarshal(body)
			default:
				p.Update = &Update{}
				err = p.Update.Unmarshal(body)
			}
			return n, err
		}
		return -1, nil
	})
}

// Decode unmarshals and validates one DataPacket.
func Decode(b []byte) (DataPacket, error) {
	var p DataPacket
	if err := p.Unmarshal(b); err != nil {
		return DataPacket{}, err
	}
	if err := p.Validate(); err != nil {
		return DataPacket{}, err
	}
	return p, nil
}
