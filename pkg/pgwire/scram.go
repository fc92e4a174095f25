// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgwire

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgerror"
	"github.com/cockroachdb/pgdriver/pkg/pgwire/pgwirebase"
	"golang.org/x/crypto/pbkdf2"
)

const scramMechanism = "SCRAM-SHA-256"

// scramClient holds the running state of one SCRAM-SHA-256 exchange
// (RFC 5802, RFC 7677). The gs2 header is always "n,," since the driver
// neither supports nor requests channel binding.
type scramClient struct {
	password       string
	clientNonce    string
	clientFirstMsg string // the "bare" part, without the gs2 header
	saltedPassword []byte
	authMessage    string
}

func newScramClient(password string) (*scramClient, error) {
	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return nil, pgerror.Wrap(err, pgerror.InternalError, "generating nonce")
	}
	nonce := base64.RawStdEncoding.EncodeToString(raw)
	return &scramClient{
		password:       password,
		clientNonce:    nonce,
		clientFirstMsg: "n=,r=" + nonce,
	}, nil
}

// first returns the client-first-message, gs2 header included.
func (s *scramClient) first() string {
	return "n,," + s.clientFirstMsg
}

// final consumes the server-first-message and returns the
// client-final-message carrying the proof.
func (s *scramClient) final(serverFirst string) (string, error) {
	attrs, err := parseScramAttrs(serverFirst)
	if err != nil {
		return "", err
	}
	serverNonce, ok := attrs["r"]
	if !ok || !strings.HasPrefix(serverNonce, s.clientNonce) {
		return "", pgerror.New(pgerror.OperationalError,
			"SCRAM server nonce does not extend the client nonce")
	}
	salt, err := base64.StdEncoding.DecodeString(attrs["s"])
	if err != nil {
		return "", pgerror.Wrap(err, pgerror.OperationalError, "malformed SCRAM salt")
	}
	iters, err := strconv.Atoi(attrs["i"])
	if err != nil || iters < 1 {
		return "", pgerror.Newf(pgerror.OperationalError,
			"malformed SCRAM iteration count %q", attrs["i"])
	}

	s.saltedPassword = pbkdf2.Key([]byte(s.password), salt, iters, sha256.Size, sha256.New)
	clientKey := hmacSHA256(s.saltedPassword, "Client Key")
	storedKey := sha256.Sum256(clientKey)

	withoutProof := "c=biws,r=" + serverNonce
	s.authMessage = s.clientFirstMsg + "," + serverFirst + "," + withoutProof

	clientSig := hmacSHA256(storedKey[:], s.authMessage)
	proof := make([]byte, len(clientKey))
	for i := range proof {
		proof[i] = clientKey[i] ^ clientSig[i]
	}
	return withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof), nil
}

// verifyServerFinal checks the server signature in the server-final-message.
// A server that cannot produce it never knew the password verifier.
func (s *scramClient) verifyServerFinal(serverFinal string) error {
	attrs, err := parseScramAttrs(serverFinal)
	if err != nil {
		return err
	}
	if e, ok := attrs["e"]; ok {
		return pgerror.Newf(pgerror.OperationalError, "SCRAM authentication failed: %s", e)
	}
	sig, err := base64.StdEncoding.DecodeString(attrs["v"])
	if err != nil {
		return pgerror.Wrap(err, pgerror.OperationalError, "malformed SCRAM server signature")
	}
	serverKey := hmacSHA256(s.saltedPassword, "Server Key")
	want := hmacSHA256(serverKey, s.authMessage)
	if !hmac.Equal(sig, want) {
		return pgerror.New(pgerror.OperationalError,
			"SCRAM server signature mismatch: server does not know the password")
	}
	return nil
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

func parseScramAttrs(msg string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || len(k) != 1 {
			return nil, pgerror.Newf(pgerror.OperationalError,
				"malformed SCRAM attribute %q", part)
		}
		attrs[k] = v
	}
	return attrs, nil
}

// authSCRAM runs the SASL exchange after the server requested it and offered
// the given mechanisms.
func (c *Conn) authSCRAM(mechs []string) error {
	if !containsMechanism(mechs, scramMechanism) {
		return pgerror.Newf(pgerror.NotSupportedError,
			"no supported SASL mechanism offered (got %v)", mechs)
	}
	client, err := newScramClient(c.cfg.Password)
	if err != nil {
		return err
	}

	// SASLInitialResponse names the mechanism and carries the
	// client-first-message as a length-prefixed payload.
	first := client.first()
	c.writeBuf.InitMsg(pgwirebase.ClientMsgPassword)
	c.writeBuf.WriteTerminatedString(scramMechanism)
	c.writeBuf.WriteLengthPrefixedBytes([]byte(first))
	if err := c.writeBuf.FinishMsg(c.netConn); err != nil {
		return c.markBroken(pgerror.Wrap(err, pgerror.OperationalError, "write failed"))
	}

	serverFirst, err := c.readSASLData(pgwirebase.AuthSASLContinue)
	if err != nil {
		return err
	}
	finalMsg, err := client.final(serverFirst)
	if err != nil {
		return err
	}

	c.writeBuf.InitMsg(pgwirebase.ClientMsgPassword)
	c.writeBuf.WriteString(finalMsg)
	if err := c.writeBuf.FinishMsg(c.netConn); err != nil {
		return c.markBroken(pgerror.Wrap(err, pgerror.OperationalError, "write failed"))
	}

	serverFinal, err := c.readSASLData(pgwirebase.AuthSASLFinal)
	if err != nil {
		return err
	}
	return client.verifyServerFinal(serverFinal)
}

// readSASLData reads the next Authentication message and returns its SASL
// payload, enforcing the expected continuation code.
func (c *Conn) readSASLData(wantCode int32) (string, error) {
	typ, err := c.receiveStartupMsg()
	if err != nil {
		return "", err
	}
	switch typ {
	case pgwirebase.ServerMsgAuth:
	case pgwirebase.ServerMsgErrorResponse:
		return "", c.parseErrorResponse()
	default:
		return "", pgerror.Newf(pgerror.InterfaceError,
			"unexpected message %q during SASL exchange", byte(typ))
	}
	code, err := c.readBuf.GetInt32()
	if err != nil {
		return "", pgerror.Wrap(err, pgerror.InterfaceError, "")
	}
	if code != wantCode {
		return "", pgerror.Newf(pgerror.InterfaceError,
			"unexpected authentication code %d during SASL exchange (want %d)", code, wantCode)
	}
	return string(c.readBuf.Msg), nil
}
