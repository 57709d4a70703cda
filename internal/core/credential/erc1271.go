package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var errInvalidSignature = errors.New("invalid signature")

// erc1271MagicValue is bytes4(keccak256("isValidSignature(bytes32,bytes)")).
var erc1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

const erc1271ABI = `[{"type":"function","name":"isValidSignature","stateMutability":"view",
"inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],
"outputs":[{"name":"magicValue","type":"bytes4"}]}]`

const defaultCallTimeout = 5 * time.Second

// ERC1271Checker asks a contract account whether it accepts a signature.
type ERC1271Checker struct {
	caller  ethereum.ContractCaller
	abi     abi.ABI
	timeout time.Duration
}

// NewERC1271Checker wraps a contract caller, usually an *ethclient.Client.
func NewERC1271Checker(caller ethereum.ContractCaller, timeout time.Duration) (*ERC1271Checker, error) {
	parsed, err := abi.JSON(strings.NewReader(erc1271ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc1271 abi: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &ERC1271Checker{caller: caller, abi: parsed, timeout: timeout}, nil
}

// IsValidSignature calls isValidSignature(digest, signature) on account and
// compares the result with the ERC-1271 magic value. Accounts without code
// return no data and are reported as invalid.
func (c *ERC1271Checker) IsValidSignature(ctx context.Context, account common.Address, digest [32]byte, signature []byte) (bool, error) {
	input, err := c.abi.Pack("isValidSignature", digest, signature)
	if err != nil {
		return false, fmt.Errorf("pack isValidSignature: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &account, Data: input}, nil)
	if err != nil {
		return false, fmt.Errorf("call isValidSignature: %w", err)
	}
	if len(out) == 0 {
		return false, nil
	}

	values, err := c.abi.Unpack("isValidSignature", out)
	if err != nil {
		return false, fmt.Errorf("unpack isValidSignature: %w", err)
	}
	if len(values) != 1 {
		return false, nil
	}
	magic, ok := values[0].([4]byte)
	if !ok {
		return false, nil
	}
	return magic == erc1271MagicValue, nil
}
