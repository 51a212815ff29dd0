package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_IssueThenVerifyRoundTrips(t *testing.T) {
	signer := NewSigner([]byte("a-fairly-long-process-secret"))

	tok := signer.Issue(Claims{GameID: "game-1", PlayerName: "alice"})
	claims, err := signer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "game-1", claims.GameID)
	assert.Equal(t, "alice", claims.PlayerName)
}

func TestSigner_VerifyRejectsTamperedToken(t *testing.T) {
	signer := NewSigner([]byte("secret-a"))
	tok := signer.Issue(Claims{GameID: "game-1", PlayerName: "alice"})

	tampered := tok[:len(tok)-1] + "x"
	_, err := signer.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_VerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewSigner([]byte("secret-a"))
	tok := issuer.Issue(Claims{GameID: "game-1", PlayerName: "alice"})

	verifier := NewSigner([]byte("secret-b"))
	_, err := verifier.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_RequireGameRejectsMismatch(t *testing.T) {
	signer := NewSigner([]byte("secret-a"))
	tok := signer.Issue(Claims{GameID: "game-1", PlayerName: "alice"})

	_, err := signer.RequireGame(tok, "game-2")
	assert.ErrorIs(t, err, ErrGameMismatch)

	claims, err := signer.RequireGame(tok, "game-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.PlayerName)
}

func TestSigner_VerifyRejectsMalformedToken(t *testing.T) {
	signer := NewSigner([]byte("secret-a"))
	_, err := signer.Verify("not-a-real-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
