package sessions

import (
	"fmt"

	"github.com/SIR2425/go-oauth20/internal/utils"
)

// idLength is 32 bytes = 256 bits of entropy.
const idLength = 32

// NewID generates a cryptographically secure session id.
func NewID() (string, error) {
	id, err := utils.RandomString(idLength)
	if err != nil {
		return "", fmt.Errorf("sessions: failed to generate id: %w", err)
	}
	return id, nil
}
