package nostrnorm

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federails/corequery/internal/relay"
)

// signedEvent builds a relay.Event with a valid NIP-01 id and BIP-340
// signature from a freshly generated key pair, for VerifyID/VerifySignature
// tests that need a genuinely valid event rather than a fixture.
func signedEvent(t *testing.T, content string) relay.Event {
	t.Helper()

	privKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pubKeyBytes := schnorr.SerializePubKey(privKey.PubKey())

	ev := relay.Event{
		PubKey:    hex.EncodeToString(pubKeyBytes),
		CreatedAt: time.Unix(1700000000, 0),
		Kind:      1,
		Tags:      [][]string{},
		Content:   content,
	}

	id, err := ComputeID(ev)
	require.NoError(t, err)
	ev.ID = id

	idBytes, err := hex.DecodeString(id)
	require.NoError(t, err)

	sig, err := schnorr.Sign(privKey, idBytes)
	require.NoError(t, err)
	ev.Sig = hex.EncodeToString(sig.Serialize())

	return ev
}

func TestVerifyID_ValidEvent(t *testing.T) {
	ev := signedEvent(t, "hello world")
	ok, err := VerifyID(ev)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyID_TamperedContentFails(t *testing.T) {
	ev := signedEvent(t, "hello world")
	ev.Content = "tampered"
	ok, err := VerifyID(ev)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignature_ValidEvent(t *testing.T) {
	ev := signedEvent(t, "hello world")
	ok, err := VerifySignature(ev)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySignature_WrongSignatureFails(t *testing.T) {
	evA := signedEvent(t, "hello world")
	evB := signedEvent(t, "a different message entirely")
	evA.Sig = evB.Sig

	ok, err := VerifySignature(evA)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignature_MalformedFieldsError(t *testing.T) {
	ev := relay.Event{ID: "not-hex", PubKey: "also-not-hex", Sig: "nope"}
	_, err := VerifySignature(ev)
	assert.Error(t, err)
}
