package server

import (
	"errors"
	"fmt"
	"io"
	"net"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/glauth/ldap"

	"github.com/lightldap/lightldap/pkg/handler"
)

// handleConnection serves one client until it unbinds, hangs up or sends
// something that cannot be parsed. Operations are handled strictly in order.
func (s *LdapSvc) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.forget(conn)
	defer conn.Close()

	log := s.log.With().Str("src", conn.RemoteAddr().String()).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("panic", fmt.Sprintf("%v", rec)).Msg("panic in connection handler")
		}
	}()

	h := handler.NewLdapHandler(
		handler.Backend(s.backend),
		handler.Root(s.root),
		handler.Logger(&log),
		handler.Tracer(s.tracer),
		handler.Monitor(s.monitor),
	)

	for {
		packet, err := ber.ReadPacket(conn)
		if err == io.EOF {
			return
		}
		if err != nil {
			if s.ctx.Err() == nil {
				log.Debug().Err(err).Msg("read error")
			}
			return
		}

		op, err := decodeMessage(packet)
		var refused *refusal
		switch {
		case errors.Is(err, errAbandon):
			continue
		case errors.As(err, &refused):
			log.Debug().Int64("msgid", refused.MessageID).Str("reason", refused.Message).Msg("operation refused")
			if err := s.send(conn, refused.packet()); err != nil {
				log.Debug().Err(err).Msg("send error")
				return
			}
			continue
		case err != nil:
			log.Debug().Err(err).Msg("malformed message, closing connection")
			return
		}

		bind, isBind := op.(handler.SimpleBindRequest)
		if isBind && s.limiter.isInTimeout(conn.RemoteAddr()) {
			log.Info().Str("binddn", bind.DN).Msg("bind refused, source is blocked")
			blocked := &refusal{
				MessageID:   bind.MsgID,
				ResponseTag: ber.Tag(ldap.ApplicationBindResponse),
				Code:        ldap.LDAPResultUnwillingToPerform,
			}
			if err := s.send(conn, blocked.packet()); err != nil {
				return
			}
			continue
		}

		s.countOp(op)
		msgs, ok := h.HandleLdapMessage(s.ctx, op)
		if !ok {
			return
		}

		if isBind && len(msgs) == 1 {
			if resp, ok := msgs[0].Op.(handler.BindResponse); ok {
				s.limiter.noteBind(conn.RemoteAddr(), resp.Result.Code == ldap.LDAPResultInvalidCredentials)
			}
		}

		for _, msg := range msgs {
			packet, err := encodeMessage(msg)
			if err != nil {
				log.Error().Err(err).Msg("could not encode response")
				return
			}
			if err := s.send(conn, packet); err != nil {
				log.Debug().Err(err).Msg("send error")
				return
			}
		}
	}
}

func (s *LdapSvc) send(conn net.Conn, packet *ber.Packet) error {
	_, err := conn.Write(packet.Bytes())
	return err
}
