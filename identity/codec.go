package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
)

var errEmptyPrincipal = errors.New("stored principal is empty")

// Reduce projects an assertion onto the fields kept in a session.
func Reduce(a *Assertion) (Principal, error) {
	if a == nil || strings.TrimSpace(a.Subject) == "" {
		return Principal{}, apperrors.ErrIncompleteAssertion
	}
	return Principal{
		ID:          a.Subject,
		DisplayName: a.DisplayName,
	}, nil
}

// Serialize is the stored form of a principal.
func Serialize(p Principal) ([]byte, error) {
	if p.ID == "" {
		return nil, errEmptyPrincipal
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal principal: %w", err)
	}
	return data, nil
}

// Expand rebuilds a principal from its stored form. It is the left inverse of Serialize.
func Expand(data []byte) (Principal, error) {
	if len(data) == 0 {
		return Principal{}, errEmptyPrincipal
	}
	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return Principal{}, fmt.Errorf("identity: unmarshal principal: %w", err)
	}
	if p.ID == "" {
		return Principal{}, errEmptyPrincipal
	}
	return p, nil
}
