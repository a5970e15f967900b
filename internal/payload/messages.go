package payload

import (
	"errors"
	"fmt"
)

// Packet type values carried in DataPacket.Type.
const (
	TypeLogin        int32 = 2
	TypeAuthResponse int32 = 3
	TypeUpdate       int32 = 4
)

// StatusAuthFailed is the AuthResponse status a server sends when a login is
// rejected.
const StatusAuthFailed int32 = 1

var (
	ErrMalformed   = errors.New("payload: malformed message")
	ErrTypeMissing = errors.New("payload: data packet has no body")
	ErrTypeBody    = errors.New("payload: type does not match body")
)

type Login struct {
	Service string
	Token   string
}

type AuthResponse struct {
	Status  int32
	Message string
}

// Failed reports whether the server rejected the login.
func (a AuthResponse) Failed() bool {
	return a.Status == StatusAuthFailed
}

type Update struct {
	Name         string
	Value        string
	Type         string
	PersistCache bool
}

// DataPacket wraps exactly one body. Type is expected to match the body
// that is set.
type DataPacket struct {
	Type         int32
	Login        *Login
	AuthResponse *AuthResponse
	Update       *Update
}

func NewLogin(service, token string) DataPacket {
	return DataPacket{Type: TypeLogin, Login: &Login{Service: service, Token: token}}
}

func NewUpdate(u Update) DataPacket {
	return DataPacket{Type: TypeUpdate, Update: &u}
}

func NewAuthResponse(status int32, message string) DataPacket {
	return DataPacket{Type: TypeAuthResponse, AuthResponse: &AuthResponse{Status: status, Message: message}}
}

// Validate checks that Type names the body that is set.
func (p DataPacket) Validate() error {
	set := 0
	var bodyType int32
	if p.Login != nil {
		set++
		bodyType = TypeLogin
	}
	if p.AuthResponse != nil {
		set++
		bodyType = TypeAuthResponse
	}
	if p.Update != nil {
		set++
		bodyType = TypeUpdate
	}
	switch {
	case set == 0:
		return ErrTypeMissing
	case set > 1:
		return fmt.Errorf("%w: %d bodies set", ErrMalformed, set)
	case bodyType != p.Type:
		return fmt.Errorf("%w: type=%d body=%d", ErrTypeBody, p.Type, bodyType)
	}
	return nil
}

func TypeName(t int32) string {
	switch t {
	case TypeLogin:
		return "login"
	case TypeAuthResponse:
		return "auth_response"
	case TypeUpdate:
		return "update"
	default:
		return fmt.Sprintf("type(%d)", t)
	}
}
