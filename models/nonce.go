package models

import "github.com/gagliardetto/solana-go"

// ConsumedNonce is written in the same ledger unit as the instruction a
// signed envelope carried.
type ConsumedNonce struct {
	Signer      solana.PublicKey `json:"signer"`
	Nonce       string           `json:"nonce"`
	Instruction string           `json:"instruction"`
	At          int64            `json:"at"`
}
