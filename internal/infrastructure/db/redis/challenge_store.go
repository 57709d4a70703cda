package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gigmarket/identity/internal/core/domain"
)

// consumeScript deletes the key only when it holds the expected message.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ChallengeStore keeps wallet challenges in Redis.
// Key format: wallet:challenge:<lower-case address>:<sha256(message)>
//
// Every issued challenge has its own key, so requesting a new challenge for
// an address leaves the ones already handed out valid until they expire.
type ChallengeStore struct {
	client redis.UniversalClient
}

func NewChallengeStore(client redis.UniversalClient) *ChallengeStore {
	return &ChallengeStore{client: client}
}

// Save stores the challenge message until ttl elapses.
func (s *ChallengeStore) Save(ctx context.Context, ch *domain.WalletChallenge, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("challenge ttl must be positive")
	}
	if ch.Message == "" {
		return errors.New("challenge message is empty")
	}
	if err := s.client.Set(ctx, s.key(ch.Address, ch.Message), ch.Message, ttl).Err(); err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

// Peek reports whether message is a live challenge for address.
func (s *ChallengeStore) Peek(ctx context.Context, address, message string) (bool, error) {
	if message == "" {
		return false, nil
	}
	stored, err := s.client.Get(ctx, s.key(address, message)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("peek challenge: %w", err)
	}
	return stored == message, nil
}

// Consume atomically removes the challenge if message is live for address.
func (s *ChallengeStore) Consume(ctx context.Context, address, message string) error {
	if message == "" {
		return domain.ErrChallengeInvalid
	}
	n, err := consumeScript.Run(ctx, s.client, []string{s.key(address, message)}, message).Int()
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if n == 0 {
		return domain.ErrChallengeInvalid
	}
	return nil
}

func (s *ChallengeStore) key(address, message string) string {
	sum := sha256.Sum256([]byte(message))
	return "wallet:challenge:" + domain.NormalizeWallet(address) + ":" + hex.EncodeToString(sum[:])
}
