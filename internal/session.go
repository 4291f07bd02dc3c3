package internal

import (
	"context"
	"crypto/subtle"
	"encoding/json"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/quartzmc/quartz/auth"
	"github.com/quartzmc/quartz/conf"
	"github.com/quartzmc/quartz/protocol"
	"github.com/quartzmc/quartz/protocol/frame"
)

var (
	errLoginOutOfOrder = errors.New("login packet out of order")
	errSecretLength    = errors.New("malformed shared secret")
)

// sessionHandler runs the pre-play phases inline on the connection's reader
// goroutine: version negotiation, the status ping, and the login key
// exchange. Keeping the RSA work and the session-server call here means a
// slow or hostile client only ever parks its own reader.
type sessionHandler struct {
	w *Worker

	conf          conf.Config
	keyPair       *auth.KeyPair
	authenticator auth.Authenticator
	onlineFn      func() int

	verifyToken []byte
	username    string
}

func newSessionHandler(w *Worker, opts *options) *sessionHandler {
	return &sessionHandler{
		w:             w,
		conf:          opts.conf,
		keyPair:       opts.keyPair,
		authenticator: opts.authenticator,
		onlineFn:      opts.onlineFn,
	}
}

func (s *sessionHandler) handleLegacyPing() error {
	legacyPings.Inc()

	resp := protocol.EncodeLegacyStatus(protocol.LegacyStatus{
		ProtocolVersion: s.conf.Status.ProtocolVersion,
		VersionName:     s.conf.Status.VersionName,
		MOTD:            s.conf.Status.MOTD,
		OnlinePlayers:   s.onlineFn(),
		MaxPlayers:      s.conf.Status.MaxPlayers,
	})

	s.w.handle.SendRaw(resp)
	s.w.handle.Disconnect()
	s.w.state = protocol.StateDisconnected

	return nil
}

func (s *sessionHandler) handleHandshake(hs *protocol.Handshake) error {
	target, err := protocol.HandshakeTarget(hs.NextState)
	if err != nil {
		return errors.Wrapf(err, "next_state=%d", hs.NextState)
	}

	log.Debugf("[Session] handshake. wid=%d proto=%d addr=%s next=%s",
		s.w.id, hs.ProtocolVersion, hs.ServerAddress, target)

	s.w.state = target

	return nil
}

func (s *sessionHandler) handleStatus(pkt protocol.Packet) error {
	switch p := pkt.(type) {
	case *protocol.StatusRequest:
		info := protocol.StatusInfo{
			Version: protocol.StatusVersion{
				Name:     s.conf.Status.VersionName,
				Protocol: s.conf.Status.ProtocolVersion,
			},
			Players: protocol.StatusPlayers{
				Max:    s.conf.Status.MaxPlayers,
				Online: s.onlineFn(),
				Sample: []protocol.StatusSample{},
			},
			Description: protocol.StatusText{Text: s.conf.Status.MOTD},
		}

		doc, err := info.JSON()
		if err != nil {
			return err
		}

		s.w.handle.SendPacket(&protocol.StatusResponse{JSON: doc})

	case *protocol.Ping:
		s.w.handle.SendPacket(&protocol.Pong{Payload: p.Payload})

	default:
		return errors.Wrapf(protocol.ErrUnknownPacket, "status phase id=0x%02x", pkt.ID())
	}

	return nil
}

func (s *sessionHandler) handleLogin(ctx context.Context, pkt protocol.Packet) error {
	switch p := pkt.(type) {
	case *protocol.LoginStart:
		return s.handleLoginStart(p)
	case *protocol.EncryptionResponse:
		return s.handleEncryptionResponse(ctx, p)
	default:
		return errors.Wrapf(protocol.ErrUnknownPacket, "login phase id=0x%02x", pkt.ID())
	}
}

func (s *sessionHandler) handleLoginStart(p *protocol.LoginStart) error {
	if s.username != "" {
		return errors.Wrap(errLoginOutOfOrder, "duplicate LoginStart")
	}

	s.username = p.Name

	if !s.conf.Login.OnlineMode {
		return s.finishLogin(auth.OfflineProfile(p.Name))
	}

	token, err := auth.NewVerifyToken()
	if err != nil {
		return s.fail("Internal error", err)
	}

	s.verifyToken = token

	s.w.handle.SendPacket(&protocol.EncryptionRequest{
		ServerID:    "",
		PublicKey:   s.keyPair.PublicKeyDER(),
		VerifyToken: token,
	})

	return nil
}

func (s *sessionHandler) handleEncryptionResponse(ctx context.Context, p *protocol.EncryptionResponse) error {
	if s.verifyToken == nil {
		return errors.Wrap(errLoginOutOfOrder, "EncryptionResponse before LoginStart")
	}

	secret, err := s.keyPair.Decrypt(p.SharedSecret)
	if err != nil {
		return s.fail("Cryptography failure", err)
	}

	token, err := s.keyPair.Decrypt(p.VerifyToken)
	if err != nil {
		return s.fail("Cryptography failure", err)
	}

	if subtle.ConstantTimeCompare(token, s.verifyToken) != 1 {
		return s.fail("Cryptography failure", auth.ErrVerifyTokenMismatch)
	}

	if len(secret) != frame.SecretLen {
		return s.fail("Cryptography failure", errors.Wrapf(errSecretLength, "len=%d", len(secret)))
	}

	// The client encrypts everything after EncryptionResponse, and expects
	// everything after this point from us encrypted as well. The decoder is
	// owned by this goroutine; the encoder upgrade rides the send queue so
	// it lands between EncryptionRequest and LoginSuccess.
	if err := s.w.dec.EnableEncryption(secret); err != nil {
		return err
	}

	s.w.handle.EnableEncryption(secret)

	hash := auth.ServerHash("", secret, s.keyPair.PublicKeyDER())

	profile, err := s.authenticator.HasJoined(ctx, s.username, hash)
	if err != nil {
		return s.fail("Failed to verify username", err)
	}

	return s.finishLogin(profile)
}

func (s *sessionHandler) finishLogin(profile auth.Profile) error {
	if threshold := s.conf.Login.CompressionThreshold; threshold >= 0 {
		// SetCompression itself goes out uncompressed; only frames after it
		// use the compressed layout, on both directions.
		s.w.handle.SendPacket(&protocol.SetCompression{Threshold: threshold})
		s.w.handle.EnableCompression(threshold)
		s.w.dec.EnableCompression(threshold)
	}

	s.w.handle.SendPacket(&protocol.LoginSuccess{UUID: profile.ID, Username: profile.Name})

	log.Infof("[Session] login complete. wid=%d name=%s uuid=%s", s.w.id, profile.Name, profile.ID)

	s.w.enterPlay(Event{
		Kind:    EventConnected,
		ConnID:  s.w.id,
		Handle:  s.w.handle,
		Profile: profile,
	})

	return nil
}

// fail rejects the login attempt with a readable reason before the writer
// tears the socket down, and surfaces err to stop the read loop.
func (s *sessionHandler) fail(reason string, err error) error {
	loginFailures.Inc()

	doc, jsonErr := json.Marshal(protocol.StatusText{Text: reason})
	if jsonErr == nil {
		s.w.handle.SendPacket(&protocol.LoginDisconnect{Reason: string(doc)})
	}

	s.w.handle.Disconnect()
	s.w.state = protocol.StateDisconnected

	return errors.Wrapf(err, "login rejected. name=%s", s.username)
}
