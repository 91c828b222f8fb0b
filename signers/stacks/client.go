// Package stacks provides a secp256k1 key-backed signer for Stacks
// payment transactions. Keys never leave the process; signatures are
// produced locally before any network call.
package stacks

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	x402stacks "github.com/tony1908/x402Stacks/mechanisms/stacks"
)

// ClientSigner implements stacks.TxSigner using an ECDSA private key.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// NewClientSignerFromPrivateKey creates a client signer from a
// hex-encoded private key and the account's address.
//
// Example:
//
//	signer, err := stacks.NewClientSignerFromPrivateKey("0x1234...", "ST2CY5...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := mechstacks.NewExactStacksClient("testnet", signer)
func NewClientSignerFromPrivateKey(privateKeyHex, address string) (x402stacks.TxSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &ClientSigner{
		privateKey: privateKey,
		address:    address,
	}, nil
}

// Address returns the sender principal of the signer.
func (s *ClientSigner) Address() string {
	return s.address
}

// SignHash signs a 32-byte transaction sighash, returning a 65-byte
// recoverable signature.
func (s *ClientSigner) SignHash(_ context.Context, hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("sighash must be 32 bytes, got %d", len(hash))
	}

	signature, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	return signature, nil
}
