package authclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// WalletProvider is the signing capability a wallet exposes to the client.
type WalletProvider interface {
	// RequestAccounts returns the addresses the user allows the client to use.
	RequestAccounts(ctx context.Context) ([]string, error)
	// PersonalSign returns a hex personal_sign signature of message by address.
	PersonalSign(ctx context.Context, message, address string) (string, error)
}

// KeyWallet is a WalletProvider backed by one in-process secp256k1 key.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewKeyWallet(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key, address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

// GenerateKeyWallet creates a KeyWallet with a fresh random key.
func GenerateKeyWallet() (*KeyWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("authclient: generate key: %w", err)
	}
	return NewKeyWallet(key), nil
}

// Address returns the lower-case 0x address of the key.
func (w *KeyWallet) Address() string {
	return w.address
}

func (w *KeyWallet) RequestAccounts(context.Context) ([]string, error) {
	return []string{w.address}, nil
}

func (w *KeyWallet) PersonalSign(_ context.Context, message, address string) (string, error) {
	if !strings.EqualFold(address, w.address) {
		return "", fmt.Errorf("authclient: wallet does not hold %s", address)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
