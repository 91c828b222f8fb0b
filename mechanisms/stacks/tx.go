package stacks

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	x402 "github.com/tony1908/x402Stacks"
)

// MemoLength is the fixed size of the on-chain memo field. Longer memos
// are truncated to this many bytes before construction.
const MemoLength = 34

// Transaction wire-format constants.
const (
	txVersionMainnet = 0x00
	txVersionTestnet = 0x80

	chainIDMainnet = 0x00000001
	chainIDTestnet = 0x80000000

	payloadTypeTokenTransfer = 0x00
	payloadTypeContractCall  = 0x02
)

// TxSigner signs a transaction sighash with the account's private key.
// It is the only cryptographic boundary of this package; implementations
// must not broadcast anything.
type TxSigner interface {
	// Address returns the sender principal.
	Address() string

	// SignHash signs a 32-byte sighash, returning a 65-byte recoverable
	// signature.
	SignHash(ctx context.Context, hash []byte) ([]byte, error)
}

// TransferRequest describes one transfer to construct and sign. Both
// protocol generations funnel into this shape.
type TransferRequest struct {
	Network   string // bare network name
	Recipient string
	Amount    *big.Int
	Asset     x402.Asset
	Memo      string
}

// transferPayload is the closed variant over the two transfer shapes.
// Each variant encodes itself; dispatch is exhaustive at the call site.
type transferPayload interface {
	payloadType() byte
	encode(w *bytes.Buffer)
}

// tokenTransferPayload is a direct value transfer of the native asset.
type tokenTransferPayload struct {
	recipient string
	amount    *big.Int
	memo      [MemoLength]byte
}

func (p *tokenTransferPayload) payloadType() byte { return payloadTypeTokenTransfer }

func (p *tokenTransferPayload) encode(w *bytes.Buffer) {
	writeString(w, p.recipient)
	writeBigInt(w, p.amount)
	w.Write(p.memo[:])
}

// contractCallPayload invokes a token contract's standard transfer entry
// point with (amount, sender, recipient, memo).
type contractCallPayload struct {
	contract  x402.ContractRef
	function  string
	amount    *big.Int
	sender    string
	recipient string
	memo      [MemoLength]byte
}

func (p *contractCallPayload) payloadType() byte { return payloadTypeContractCall }

func (p *contractCallPayload) encode(w *bytes.Buffer) {
	writeString(w, p.contract.Issuer)
	writeString(w, p.contract.Name)
	writeString(w, p.function)
	writeBigInt(w, p.amount)
	writeString(w, p.sender)
	writeString(w, p.recipient)
	w.Write(p.memo[:])
}

// Transaction is a signed-but-unbroadcast transfer. Broadcast is strictly
// the facilitator's responsibility; nothing in this package submits to
// the network.
type Transaction struct {
	version   byte
	chainID   uint32
	sender    string
	payload   transferPayload
	signature []byte
}

// BuildTransfer constructs the unsigned transaction for a request,
// dispatching on the asset kind.
func BuildTransfer(req TransferRequest, sender string) (*Transaction, error) {
	if req.Amount == nil || req.Amount.Sign() < 0 {
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodeInvalidAmount,
			Message: "transfer amount must be a non-negative integer",
		}
	}
	if !x402.ValidAddress(req.Recipient) {
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodeMalformedRecipient,
			Message: fmt.Sprintf("recipient is not a valid address: %s", req.Recipient),
		}
	}

	version, chainID, err := networkParams(req.Network)
	if err != nil {
		return nil, err
	}

	var payload transferPayload
	switch req.Asset.Kind {
	case x402.AssetKindNative:
		payload = &tokenTransferPayload{
			recipient: req.Recipient,
			amount:    req.Amount,
			memo:      truncateMemo(req.Memo),
		}
	case x402.AssetKindFungibleToken:
		if req.Asset.Contract == nil {
			return nil, &x402.PaymentError{
				Code:    x402.ErrCodeMissingContractBinding,
				Message: fmt.Sprintf("no token contract resolvable for transfer on %s", req.Network),
			}
		}
		payload = &contractCallPayload{
			contract:  *req.Asset.Contract,
			function:  "transfer",
			amount:    req.Amount,
			sender:    sender,
			recipient: req.Recipient,
			memo:      truncateMemo(req.Memo),
		}
	default:
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodeUnsupportedAsset,
			Message: fmt.Sprintf("unknown asset kind: %s", req.Asset.Kind),
		}
	}

	return &Transaction{
		version: version,
		chainID: chainID,
		sender:  sender,
		payload: payload,
	}, nil
}

// Sign computes the sighash over the serialized unsigned transaction and
// attaches the signer's signature.
func (tx *Transaction) Sign(ctx context.Context, signer TxSigner) error {
	hash := sha256.Sum256(tx.serialize(false))
	sig, err := signer.SignHash(ctx, hash[:])
	if err != nil {
		return &x402.PaymentError{
			Code:    x402.ErrCodeTransportFailure,
			Message: fmt.Sprintf("signing dependency failed: %v", err),
		}
	}
	tx.signature = sig
	return nil
}

// Serialize renders the signed transaction as hex for transport.
func (tx *Transaction) Serialize() (string, error) {
	if tx.signature == nil {
		return "", &x402.PaymentError{
			Code:    x402.ErrCodeInternalError,
			Message: "transaction is not signed",
		}
	}
	return hex.EncodeToString(tx.serialize(true)), nil
}

func (tx *Transaction) serialize(withSignature bool) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tx.version)
	binary.Write(&buf, binary.BigEndian, tx.chainID)
	writeString(&buf, tx.sender)
	buf.WriteByte(tx.payload.payloadType())
	tx.payload.encode(&buf)
	if withSignature {
		writeBytes(&buf, tx.signature)
	}
	return buf.Bytes()
}

func networkParams(network string) (version byte, chainID uint32, err error) {
	switch network {
	case x402.NetworkMainnet:
		return txVersionMainnet, chainIDMainnet, nil
	case x402.NetworkTestnet:
		return txVersionTestnet, chainIDTestnet, nil
	}
	return 0, 0, &x402.PaymentError{
		Code:    x402.ErrCodeUnsupportedNetwork,
		Message: fmt.Sprintf("unknown network name: %s", network),
	}
}

// truncateMemo takes a fixed-length prefix of the memo, zero-padded. The
// truncation is deterministic so a given nonce always produces the same
// on-chain memo.
func truncateMemo(memo string) [MemoLength]byte {
	var out [MemoLength]byte
	copy(out[:], memo)
	return out
}

func writeString(w *bytes.Buffer, s string) {
	writeBytes(w, []byte(s))
}

func writeBytes(w *bytes.Buffer, b []byte) {
	binary.Write(w, binary.BigEndian, uint32(len(b)))
	w.Write(b)
}

func writeBigInt(w *bytes.Buffer, n *big.Int) {
	writeBytes(w, n.Bytes())
}
