package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"slot-settlement/internal/services"
	"slot-settlement/internal/status"

	"github.com/gagliardetto/solana-go"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const (
	SignerHeader    = "X-Signer"
	SignatureHeader = "X-Signature"

	maxInstructionBody = 64 << 10
	maxNonceLength     = 128
)

// Instruction requests are signed envelopes: the raw JSON body is signed
// with the signer's ed25519 key, the base58 public key goes in X-Signer and
// the base58 signature in X-Signature. The body carries a "nonce" that the
// signer never reuses.
func verifyEnvelope(e *core.RequestEvent) (solana.PublicKey, []byte, error) {
	signerStr := strings.TrimSpace(e.Request.Header.Get(SignerHeader))
	sigStr := strings.TrimSpace(e.Request.Header.Get(SignatureHeader))
	if signerStr == "" || sigStr == "" {
		return solana.PublicKey{}, nil, apis.NewUnauthorizedError("Signed instruction required", nil)
	}

	signer, err := solana.PublicKeyFromBase58(signerStr)
	if err != nil {
		return solana.PublicKey{}, nil, apis.NewUnauthorizedError("Invalid signer", err)
	}
	sig, err := solana.SignatureFromBase58(sigStr)
	if err != nil {
		return solana.PublicKey{}, nil, apis.NewUnauthorizedError("Invalid signature", err)
	}

	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxInstructionBody+1))
	if err != nil {
		return solana.PublicKey{}, nil, apis.NewBadRequestError("Failed to read instruction", err)
	}
	if len(body) > maxInstructionBody {
		return solana.PublicKey{}, nil, apis.NewApiError(http.StatusRequestEntityTooLarge, "Instruction too large", nil)
	}
	if !sig.Verify(signer, body) {
		return solana.PublicKey{}, nil, apis.NewUnauthorizedError(status.ErrInvalidSignature.Error(), nil)
	}
	return signer, body, nil
}

// instruction adapts one engine instruction to a signed POST route. sign
// copies the verified signer into the decoded input.
func instruction[In any, Out any](run func(context.Context, In) (Out, error), sign func(*In, solana.PublicKey)) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		signer, body, err := verifyEnvelope(e)
		if err != nil {
			return err
		}

		var env struct {
			Nonce string `json:"nonce"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return apis.NewBadRequestError("Invalid instruction payload", err)
		}
		if env.Nonce == "" || len(env.Nonce) > maxNonceLength {
			return apis.NewBadRequestError("Instruction nonce required", nil)
		}

		var in In
		if err := json.Unmarshal(body, &in); err != nil {
			return apis.NewBadRequestError("Invalid instruction payload", err)
		}
		sign(&in, signer)

		ctx := services.WithNonce(e.Request.Context(), signer, env.Nonce)
		out, err := run(ctx, in)
		if err != nil {
			return apiError(err)
		}
		return e.JSON(http.StatusOK, out)
	}
}

func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrPlatformNotInitialized),
		errors.Is(err, status.ErrCreatorNotFound),
		errors.Is(err, status.ErrMintNotRegistered),
		errors.Is(err, status.ErrSlotNotFound),
		errors.Is(err, status.ErrEscrowNotFound),
		errors.Is(err, status.ErrCommitNotFound),
		errors.Is(err, status.ErrTicketNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrUnauthorizedCaller):
		return apis.NewForbiddenError(err.Error(), nil)
	case errors.Is(err, status.ErrInvalidSignature):
		return apis.NewUnauthorizedError(err.Error(), nil)
	case errors.Is(err, status.ErrConcurrentModification),
		errors.Is(err, status.ErrReplayedInstruction):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		return apis.NewApiError(http.StatusGatewayTimeout, "Instruction timed out", nil)
	case errors.Is(err, context.Canceled):
		return apis.NewBadRequestError("Request cancelled", nil)
	case status.IsRejection(err):
		return apis.NewApiError(http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		return apis.NewInternalServerError("Instruction failed", fmt.Errorf("ledger: %w", err))
	}
}
