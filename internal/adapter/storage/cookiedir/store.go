package cookiedir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/port"
)

// Store keeps one Netscape cookie file per credential in a directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// List returns the credentials ordered by modification time, then id, which
// is the rotation order.
func (s *Store) List() ([]domain.Credential, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read credential dir: %w", err)
	}

	var creds []domain.Credential
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != domain.CredentialExt {
			continue
		}
		id := strings.TrimSuffix(e.Name(), domain.CredentialExt)
		if !domain.ValidCredentialID(id) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		creds = append(creds, domain.Credential{
			ID:      id,
			Path:    filepath.Join(s.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(creds, func(i, j int) bool {
		if !creds[i].ModTime.Equal(creds[j].ModTime) {
			return creds[i].ModTime.Before(creds[j].ModTime)
		}
		return creds[i].ID < creds[j].ID
	})
	return creds, nil
}

// Write stores data under id atomically.
func (s *Store) Write(id string, data []byte) (domain.Credential, error) {
	path, err := s.Path(id)
	if err != nil {
		return domain.Credential{}, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return domain.Credential{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return domain.Credential{}, fmt.Errorf("write credential: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return domain.Credential{}, fmt.Errorf("chmod credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.Credential{}, fmt.Errorf("close credential: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return domain.Credential{}, fmt.Errorf("store credential: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("stat credential: %w", err)
	}
	return domain.Credential{ID: id, Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *Store) Remove(id string) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

// Path validates id before building a path from it.
func (s *Store) Path(id string) (string, error) {
	if !domain.ValidCredentialID(id) {
		return "", domain.ErrInvalidCredentialID
	}
	return filepath.Join(s.dir, id+domain.CredentialExt), nil
}

var _ port.CredentialFiles = (*Store)(nil)
