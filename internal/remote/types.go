package remote

import "fmt"

// AuthError indicates the IMAP or SMTP server rejected the configured
// credentials. Callers surface it distinctly from transport failures.
type AuthError struct {
	Account string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %s", e.Account, e.Message)
}

// rawMessage is one fully downloaded message before normalization.
type rawMessage struct {
	uid  uint32
	body []byte
}
