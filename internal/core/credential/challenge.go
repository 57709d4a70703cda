package credential

import (
	"fmt"
	"time"
)

// BuildChallengeMessage renders the text a wallet signs to authenticate.
func BuildChallengeMessage(domain, address, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(
		"%s wants you to sign in with your wallet:\n%s\n\nNonce: %s\nIssued At: %s",
		domain, address, nonce, issuedAt.UTC().Format(time.RFC3339),
	)
}
