package port

import (
	"time"

	"github.com/bnema/mediafetch/internal/domain"
)

// JobStore holds job records. Reads return copies, so callers never share
// memory with the store.
type JobStore interface {
	Create(job *domain.Job) error
	Get(id string) (*domain.Job, error)
	Apply(id string, update domain.JobUpdate) (*domain.Job, error)
	List() ([]*domain.Job, error)
	Delete(id string) error
	ListExpired(retention time.Duration, now time.Time) ([]*domain.Job, error)
}

// CredentialFiles manages the credential files on disk.
type CredentialFiles interface {
	List() ([]domain.Credential, error)
	Write(id string, data []byte) (domain.Credential, error)
	Remove(id string) error
	Path(id string) (string, error)
}

// CredentialStats persists per-credential bookkeeping.
type CredentialStats interface {
	All() (map[string]domain.CredentialStat, error)
	RecordUse(id string, at time.Time) error
	RecordCheck(id string, valid bool, at time.Time) error
	Delete(id string) error
}

// JobPublisher receives every snapshot a JobStore commits.
type JobPublisher interface {
	Publish(jobID string, snapshot *domain.Job)
}
