package service

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var ErrInvalidToken = errors.New("invalid token")

// IdentityService issues the opaque per-browser client ids that scope job
// visibility. Tokens are "<uuid>.<mac>" where mac is a keyed BLAKE2b-256
// of the uuid. This separates clients; it does not authenticate anyone.
type IdentityService struct {
	key []byte
}

func NewIdentityService(secret string) *IdentityService {
	sum := blake2b.Sum256([]byte(secret))
	return &IdentityService{key: sum[:]}
}

// Issue returns a new client id and its signed token.
func (s *IdentityService) Issue() (clientID, token string) {
	clientID = uuid.NewString()
	return clientID, clientID + "." + s.sign(clientID)
}

// Verify returns the client id carried by a token issued by this secret.
func (s *IdentityService) Verify(token string) (string, error) {
	clientID, signature, ok := strings.Cut(token, ".")
	if !ok || clientID == "" || signature == "" {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(clientID); err != nil {
		return "", ErrInvalidToken
	}

	expected := s.sign(clientID)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return "", ErrInvalidToken
	}
	return clientID, nil
}

func (s *IdentityService) sign(clientID string) string {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// only possible with a key longer than 64 bytes
		panic(err)
	}
	h.Write([]byte(clientID))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
