package nostrnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"

	"github.com/federails/corequery/internal/relay"
)

// serializedEvent mirrors NIP-01's canonical event serialization, the
// exact JSON array whose sha256 is the event id:
// [0, pubkey, created_at, kind, tags, content].
type serializedEvent struct {
	zero      int
	pubkey    string
	createdAt int64
	kind      int
	tags      [][]string
	content   string
}

func (s serializedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.zero, s.pubkey, s.createdAt, s.kind, s.tags, s.content})
}

// ComputeID returns the NIP-01 event id: hex(sha256(canonical serialization)).
func ComputeID(ev relay.Event) (string, error) {
	raw, err := serializedEvent{
		pubkey:    ev.PubKey,
		createdAt: ev.CreatedAt.Unix(),
		kind:      ev.Kind,
		tags:      ev.Tags,
		content:   ev.Content,
	}.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyID reports whether ev.ID matches its canonical NIP-01 serialization.
func VerifyID(ev relay.Event) (bool, error) {
	id, err := ComputeID(ev)
	if err != nil {
		return false, err
	}
	return id == ev.ID, nil
}

// VerifySignature checks ev.Sig against ev.ID and ev.PubKey using BIP-340
// Schnorr verification (NIP-01's signature scheme), where pubkey and id
// are both 32-byte x-only hex strings.
func VerifySignature(ev relay.Event) (bool, error) {
	idBytes, err := hex.DecodeString(ev.ID)
	if err != nil || len(idBytes) != 32 {
		return false, fmt.Errorf("invalid event id: %q", ev.ID)
	}

	pubkeyBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil || len(pubkeyBytes) != 32 {
		return false, fmt.Errorf("invalid pubkey: %q", ev.PubKey)
	}
	pubKey, err := schnorr.ParsePubKey(pubkeyBytes)
	if err != nil {
		return false, fmt.Errorf("parse pubkey: %w", err)
	}

	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil || len(sigBytes) != 64 {
		return false, fmt.Errorf("invalid signature: %q", ev.Sig)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("parse signature: %w", err)
	}

	return sig.Verify(idBytes, pubKey), nil
}
