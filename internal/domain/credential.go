package domain

import (
	"regexp"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	credentialPrefix   = "cookie_"
	credentialAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	credentialIDLength = 12
	CredentialExt      = ".txt"
)

var credentialIDPattern = regexp.MustCompile(`^cookie_[0-9a-z]{12}$`)

// Credential is one authentication context in the pool. It is a Netscape
// cookie file handed to the extractor.
type Credential struct {
	ID              string
	Path            string
	Size            int64
	ModTime         time.Time
	LastValidatedAt time.Time
	Valid           *bool
	LastUsedAt      time.Time
	UseCount        int
	Checking        bool
}

// CredentialStat holds the usage bookkeeping persisted next to the files.
type CredentialStat struct {
	ID              string
	UseCount        int
	LastUsedAt      time.Time
	LastValidatedAt time.Time
	Valid           *bool
}

func NewCredentialID() string {
	return credentialPrefix + gonanoid.MustGenerate(credentialAlphabet, credentialIDLength)
}

// ValidCredentialID must pass before an id is turned into a path.
func ValidCredentialID(id string) bool {
	return credentialIDPattern.MatchString(id)
}
