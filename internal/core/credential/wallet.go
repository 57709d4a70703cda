// Package credential verifies the two kinds of credentials the service accepts:
// bcrypt password hashes and wallet signatures over a sign-in message.
//
// Wallet signatures are checked in two ways. A 65-byte ECDSA signature is
// recovered against the EIP-191 personal-sign digest of the message. Anything
// that does not recover to the claimed address, including the long signatures
// produced by smart-contract wallets, is handed to the ERC-1271
// isValidSignature check when an Ethereum RPC endpoint is available. There is
// no other path: a signature that cannot be validated is rejected.
package credential

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

const (
	ecdsaSignatureLen = 65
	// maxSignatureLen bounds what is forwarded to the chain.
	maxSignatureLen = 8 * 1024
)

// ContractSignatureChecker validates signatures of contract accounts.
type ContractSignatureChecker interface {
	IsValidSignature(ctx context.Context, account common.Address, digest [32]byte, signature []byte) (bool, error)
}

// WalletVerifier implements ports.WalletVerifier.
type WalletVerifier struct {
	contracts ContractSignatureChecker
	log       zerolog.Logger
}

// NewWalletVerifier creates a verifier. contracts may be nil, in which case
// only externally owned accounts can authenticate.
func NewWalletVerifier(contracts ContractSignatureChecker, log zerolog.Logger) *WalletVerifier {
	return &WalletVerifier{contracts: contracts, log: log}
}

// IsWalletAddress reports whether s is a 20-byte hex address, with or without 0x.
func IsWalletAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}

// PersonalSignDigest returns keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func PersonalSignDigest(message string) [32]byte {
	var digest [32]byte
	copy(digest[:], accounts.TextHash([]byte(message)))
	return digest
}

// VerifyWalletSignature reports whether signature is a valid signature of
// message by address. It fails closed.
func (v *WalletVerifier) VerifyWalletSignature(ctx context.Context, address, signature, message string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error().Interface("panic", r).Msg("wallet signature verification panicked")
			ok = false
		}
	}()

	if !IsWalletAddress(address) {
		return false
	}
	claimed := common.HexToAddress(strings.TrimSpace(address))

	sig, err := decodeSignature(signature)
	if err != nil || len(sig) == 0 || len(sig) > maxSignatureLen {
		return false
	}

	digest := PersonalSignDigest(message)

	if len(sig) == ecdsaSignatureLen {
		if recovered, err := RecoverAddress(digest, sig); err == nil && recovered == claimed {
			return true
		}
	}

	if v.contracts == nil {
		return false
	}
	valid, err := v.contracts.IsValidSignature(ctx, claimed, digest, sig)
	if err != nil {
		v.log.Debug().Err(err).Str("address", claimed.Hex()).Msg("erc1271 check failed")
		return false
	}
	return valid
}

// RecoverAddress recovers the signer of digest from a 65-byte [R || S || V]
// signature. V may be 0/1 or 27/28. High-S signatures are rejected.
func RecoverAddress(digest [32]byte, signature []byte) (common.Address, error) {
	if len(signature) != ecdsaSignatureLen {
		return common.Address{}, errInvalidSignature
	}
	sig := make([]byte, ecdsaSignatureLen)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[64], r, s, true) {
		return common.Address{}, errInvalidSignature
	}

	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func decodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
