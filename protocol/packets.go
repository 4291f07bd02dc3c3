package protocol

import (
	"github.com/google/uuid"
)

// Packet ids for protocol 755. Serverbound and clientbound id spaces are
// independent; the registry only ever decodes serverbound ids.
const (
	IDHandshake int32 = 0x00

	IDStatusRequest  int32 = 0x00
	IDStatusResponse int32 = 0x00
	IDPing           int32 = 0x01
	IDPong           int32 = 0x01

	IDLoginStart         int32 = 0x00
	IDEncryptionResponse int32 = 0x01
	IDLoginDisconnect    int32 = 0x00
	IDEncryptionRequest  int32 = 0x01
	IDLoginSuccess       int32 = 0x02
	IDSetCompression     int32 = 0x03

	IDKeepAliveServerbound int32 = 0x0F
	IDKeepAliveClientbound int32 = 0x21
	IDPlayDisconnect       int32 = 0x1A
)

// Handshake opens every connection and selects the next state.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

func (p *Handshake) ID() int32 { return IDHandshake }

func (p *Handshake) Encode(b *Buffer) error {
	b.WriteVarInt(p.ProtocolVersion)
	b.WriteString(p.ServerAddress)
	b.WriteUint16(p.ServerPort)
	b.WriteVarInt(p.NextState)

	return nil
}

func (p *Handshake) Decode(b *Buffer) (err error) {
	if p.ProtocolVersion, err = b.ReadVarInt(); err != nil {
		return err
	}

	if p.ServerAddress, err = b.ReadString(); err != nil {
		return err
	}

	if p.ServerPort, err = b.ReadUint16(); err != nil {
		return err
	}

	p.NextState, err = b.ReadVarInt()

	return err
}

type StatusRequest struct{}

func (p *StatusRequest) ID() int32              { return IDStatusRequest }
func (p *StatusRequest) Encode(b *Buffer) error { return nil }
func (p *StatusRequest) Decode(b *Buffer) error { return nil }

// StatusResponse carries the server list JSON document.
type StatusResponse struct {
	JSON string
}

func (p *StatusResponse) ID() int32 { return IDStatusResponse }

func (p *StatusResponse) Encode(b *Buffer) error {
	b.WriteString(p.JSON)
	return nil
}

func (p *StatusResponse) Decode(b *Buffer) (err error) {
	p.JSON, err = b.ReadString()
	return err
}

type Ping struct {
	Payload int64
}

func (p *Ping) ID() int32 { return IDPing }

func (p *Ping) Encode(b *Buffer) error {
	b.WriteInt64(p.Payload)
	return nil
}

func (p *Ping) Decode(b *Buffer) (err error) {
	p.Payload, err = b.ReadInt64()
	return err
}

type Pong struct {
	Payload int64
}

func (p *Pong) ID() int32 { return IDPong }

func (p *Pong) Encode(b *Buffer) error {
	b.WriteInt64(p.Payload)
	return nil
}

func (p *Pong) Decode(b *Buffer) (err error) {
	p.Payload, err = b.ReadInt64()
	return err
}

type LoginStart struct {
	Name string
}

func (p *LoginStart) ID() int32 { return IDLoginStart }

func (p *LoginStart) Encode(b *Buffer) error {
	b.WriteString(p.Name)
	return nil
}

func (p *LoginStart) Decode(b *Buffer) (err error) {
	p.Name, err = b.ReadString()
	return err
}

// EncryptionRequest starts the login key exchange. PublicKey is the server's
// DER-encoded RSA public key; VerifyToken is echoed back RSA-encrypted.
type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

func (p *EncryptionRequest) ID() int32 { return IDEncryptionRequest }

func (p *EncryptionRequest) Encode(b *Buffer) error {
	b.WriteString(p.ServerID)
	b.WriteByteArray(p.PublicKey)
	b.WriteByteArray(p.VerifyToken)

	return nil
}

func (p *EncryptionRequest) Decode(b *Buffer) (err error) {
	if p.ServerID, err = b.ReadString(); err != nil {
		return err
	}

	if p.PublicKey, err = b.ReadByteArray(); err != nil {
		return err
	}

	p.VerifyToken, err = b.ReadByteArray()

	return err
}

// EncryptionResponse carries the shared secret and the echoed verify token,
// both RSA/PKCS1-encrypted against the server's public key.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (p *EncryptionResponse) ID() int32 { return IDEncryptionResponse }

func (p *EncryptionResponse) Encode(b *Buffer) error {
	b.WriteByteArray(p.SharedSecret)
	b.WriteByteArray(p.VerifyToken)

	return nil
}

func (p *EncryptionResponse) Decode(b *Buffer) (err error) {
	if p.SharedSecret, err = b.ReadByteArray(); err != nil {
		return err
	}

	p.VerifyToken, err = b.ReadByteArray()

	return err
}

type LoginSuccess struct {
	UUID     uuid.UUID
	Username string
}

func (p *LoginSuccess) ID() int32 { return IDLoginSuccess }

func (p *LoginSuccess) Encode(b *Buffer) error {
	b.WriteUUID(p.UUID)
	b.WriteString(p.Username)

	return nil
}

func (p *LoginSuccess) Decode(b *Buffer) (err error) {
	if p.UUID, err = b.ReadUUID(); err != nil {
		return err
	}

	p.Username, err = b.ReadString()

	return err
}

// LoginDisconnect rejects a login attempt with a human-readable reason.
type LoginDisconnect struct {
	Reason string
}

func (p *LoginDisconnect) ID() int32 { return IDLoginDisconnect }

func (p *LoginDisconnect) Encode(b *Buffer) error {
	b.WriteString(p.Reason)
	return nil
}

func (p *LoginDisconnect) Decode(b *Buffer) (err error) {
	p.Reason, err = b.ReadString()
	return err
}

// SetCompression announces the compression threshold; every frame after it
// uses the compressed layout.
type SetCompression struct {
	Threshold int32
}

func (p *SetCompression) ID() int32 { return IDSetCompression }

func (p *SetCompression) Encode(b *Buffer) error {
	b.WriteVarInt(p.Threshold)
	return nil
}

func (p *SetCompression) Decode(b *Buffer) (err error) {
	p.Threshold, err = b.ReadVarInt()
	return err
}

// KeepAliveServerbound is the client's echo of a keep-alive probe.
type KeepAliveServerbound struct {
	Payload int64
}

func (p *KeepAliveServerbound) ID() int32 { return IDKeepAliveServerbound }

func (p *KeepAliveServerbound) Encode(b *Buffer) error {
	b.WriteInt64(p.Payload)
	return nil
}

func (p *KeepAliveServerbound) Decode(b *Buffer) (err error) {
	p.Payload, err = b.ReadInt64()
	return err
}

type KeepAliveClientbound struct {
	Payload int64
}

func (p *KeepAliveClientbound) ID() int32 { return IDKeepAliveClientbound }

func (p *KeepAliveClientbound) Encode(b *Buffer) error {
	b.WriteInt64(p.Payload)
	return nil
}

func (p *KeepAliveClientbound) Decode(b *Buffer) (err error) {
	p.Payload, err = b.ReadInt64()
	return err
}

// PlayDisconnect kicks an in-game client with a chat-component reason.
type PlayDisconnect struct {
	Reason string
}

func (p *PlayDisconnect) ID() int32 { return IDPlayDisconnect }

func (p *PlayDisconnect) Encode(b *Buffer) error {
	b.WriteString(p.Reason)
	return nil
}

func (p *PlayDisconnect) Decode(b *Buffer) (err error) {
	p.Reason, err = b.ReadString()
	return err
}

// BaseRegistry returns a registry preloaded with the serverbound packets the
// session layer itself consumes. Gameplay packets are registered on top by
// the surrounding system.
func BaseRegistry() *Registry {
	r := NewRegistry()

	r.Register(StateHandshake, func() Packet { return &Handshake{} })
	r.Register(StateStatus, func() Packet { return &StatusRequest{} })
	r.Register(StateStatus, func() Packet { return &Ping{} })
	r.Register(StateLogin, func() Packet { return &LoginStart{} })
	r.Register(StateLogin, func() Packet { return &EncryptionResponse{} })
	r.Register(StatePlay, func() Packet { return &KeepAliveServerbound{} })

	return r
}
