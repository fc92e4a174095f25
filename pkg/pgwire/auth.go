// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgwire

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgwirebase"
	"github.com/cockroachdb/pgdriver/pkg/util/log"
)

// handleAuth drives the authentication portion of the startup phase. The
// server has already been sent the startup message; this reads Authentication
// requests and answers them until AuthOK or an error.
func (c *Conn) handleAuth(ctx context.Context) error {
	for {
		typ, err := c.receiveStartupMsg()
		if err != nil {
			return err
		}
		switch typ {
		case pgwirebase.ServerMsgAuth:
		case pgwirebase.ServerMsgErrorResponse:
			return c.parseErrorResponse()
		default:
			return pgerror.Newf(pgerror.InterfaceError,
				"unexpected message %q during authentication", byte(typ))
		}

		code, err := c.readBuf.GetInt32()
		if err != nil {
			return pgerror.Wrap(err, pgerror.InterfaceError, "")
		}
		switch code {
		case pgwirebase.AuthOK:
			return nil

		case pgwirebase.AuthCleartextPassword:
			log.VEventf(ctx, 2, "authenticating with cleartext password")
			if err := c.sendPassword(c.cfg.Password); err != nil {
				return err
			}

		case pgwirebase.AuthMD5Password:
			log.VEventf(ctx, 2, "authenticating with MD5 password")
			salt, err := c.readBuf.GetBytes(4)
			if err != nil {
				return pgerror.Wrap(err, pgerror.InterfaceError, "")
			}
			if err := c.sendPassword(md5Response(c.cfg.Password, c.cfg.User, salt)); err != nil {
				return err
			}

		case pgwirebase.AuthSASL:
			log.VEventf(ctx, 2, "authenticating with SCRAM-SHA-256")
			mechs, err := c.readSASLMechanisms()
			if err != nil {
				return err
			}
			if err := c.authSCRAM(mechs); err != nil {
				return err
			}

		default:
			return pgerror.Newf(pgerror.NotSupportedError,
				"authentication method %d is not supported", code)
		}
	}
}

// md5Response computes the MD5 password response:
// "md5" || hex(md5(hex(md5(password || user)) || salt)).
func md5Response(password, user string, salt []byte) string {
	inner := md5.Sum([]byte(password + user))
	outer := md5.New()
	outer.Write([]byte(hex.EncodeToString(inner[:])))
	outer.Write(salt)
	return "md5" + hex.EncodeToString(outer.Sum(nil))
}

func (c *Conn) sendPassword(password string) error {
	c.writeBuf.InitMsg(pgwirebase.ClientMsgPassword)
	c.writeBuf.WriteTerminatedString(password)
	if err := c.writeBuf.FinishMsg(c.netConn); err != nil {
		return c.markBroken(pgerror.Wrap(err, pgerror.OperationalError, "write failed"))
	}
	return nil
}

// readSASLMechanisms parses the NUL-separated mechanism list out of an
// AuthenticationSASL message.
func (c *Conn) readSASLMechanisms() ([]string, error) {
	var mechs []string
	for len(c.readBuf.Msg) > 1 {
		m, err := c.readBuf.GetString()
		if err != nil {
			return nil, pgerror.Wrap(err, pgerror.InterfaceError, "")
		}
		mechs = append(mechs, m)
	}
	if len(mechs) == 0 {
		return nil, pgerror.New(pgerror.InterfaceError, "server offered no SASL mechanisms")
	}
	return mechs, nil
}

func containsMechanism(mechs []string, want string) bool {
	for _, m := range mechs {
		if strings.EqualFold(m, want) {
			return true
		}
	}
	return false
}
