package services

import (
	"context"

	"slot-settlement/internal/ledger"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

type nonceContextKey struct{}

type envelopeNonce struct {
	signer solana.PublicKey
	nonce  string
}

// WithNonce binds a signed envelope nonce to ctx. The next instruction run
// with ctx consumes it together with its own writes, so a replayed envelope
// is rejected with status.ErrReplayedInstruction.
func WithNonce(ctx context.Context, signer solana.PublicKey, nonce string) context.Context {
	return context.WithValue(ctx, nonceContextKey{}, envelopeNonce{signer: signer, nonce: nonce})
}

func nonceFrom(ctx context.Context) (envelopeNonce, bool) {
	n, ok := ctx.Value(nonceContextKey{}).(envelopeNonce)
	return n, ok
}

func (c *call) consumeNonce(n envelopeNonce, instruction string) error {
	key := ledger.NonceKey(n.signer, n.nonce)
	used, err := c.tx.Exists(key)
	if err != nil {
		return err
	}
	if used {
		return status.ErrReplayedInstruction
	}
	return c.tx.Put(key, &models.ConsumedNonce{
		Signer:      n.signer,
		Nonce:       n.nonce,
		Instruction: instruction,
		At:          c.now,
	})
}
