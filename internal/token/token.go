// Package token issues and verifies the opaque session tokens spec.md
// §4.7/§6 describes: an HMAC-signed blob carrying (game_id, player_name)
// under a process-wide secret, validated on reconnect. Tokens carry no
// expiry, and nothing here invalidates them: a validly signed token keeps
// verifying after the tournament it names has ended.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned for a malformed token or one whose
// signature does not verify.
var ErrInvalidToken = errors.New("token: invalid or tampered")

// ErrGameMismatch is returned when a token is presented for reconnection
// to a game_id other than the one it was issued for.
var ErrGameMismatch = errors.New("token: game_id mismatch")

// Signer issues and verifies session tokens under a single secret.
// Stateless: the secret is the only thing that must be shared across
// process restarts for previously issued tokens to keep verifying.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer from a process-wide secret. The secret
// should be at least 32 bytes of random data (config.Config.TokenSecret).
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Claims is what a token asserts: the player was seated in game_id under
// player_name at issuance time.
type Claims struct {
	GameID     string
	PlayerName string
}

// Issue produces an opaque token string for claims, suitable for
// handing to a client in a game_ready event.
func (s *Signer) Issue(claims Claims) string {
	payload := encodeFields(claims.GameID, claims.PlayerName)
	mac := s.sign(payload)
	return payload + "." + mac
}

// Verify parses and authenticates a token, returning its Claims. It
// does not check the claims against any particular game_id — callers
// that expect a specific game should additionally call
// RequireGame.
func (s *Signer) Verify(tok string) (Claims, error) {
	idx := strings.LastIndexByte(tok, '.')
	if idx < 0 {
		return Claims{}, ErrInvalidToken
	}
	payload, mac := tok[:idx], tok[idx+1:]

	expected := s.sign(payload)
	if subtle.ConstantTimeCompare([]byte(mac), []byte(expected)) != 1 {
		return Claims{}, ErrInvalidToken
	}

	gameID, playerName, err := decodeFields(payload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{GameID: gameID, PlayerName: playerName}, nil
}

// RequireGame verifies tok and additionally checks it was issued for
// gameID, the check a reconnect handler runs before allowing a
// subscription to that game's per-player topic.
func (s *Signer) RequireGame(tok, gameID string) (Claims, error) {
	claims, err := s.Verify(tok)
	if err != nil {
		return Claims{}, err
	}
	if claims.GameID != gameID {
		return Claims{}, ErrGameMismatch
	}
	return claims, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encodeFields(gameID, playerName string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(gameID)) + "." +
		base64.RawURLEncoding.EncodeToString([]byte(playerName))
}

func decodeFields(payload string) (gameID, playerName string, err error) {
	parts := strings.SplitN(payload, ".", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("token: malformed payload")
	}
	g, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", err
	}
	p, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", err
	}
	return string(g), string(p), nil
}
