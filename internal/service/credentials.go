package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/port"
)

// DefaultCheckURL is probed with a credential to decide whether it still
// authenticates. Age-restricted videos refuse anonymous extraction.
const DefaultCheckURL = "https://www.youtube.com/watch?v=HtVdAasjOgU"

const checkTimeout = 90 * time.Second

// CredentialService rotates through the cookie pool and tracks its health.
type CredentialService struct {
	files     port.CredentialFiles
	stats     port.CredentialStats
	extractor port.Extractor
	checkURL  string
	now       func() time.Time

	mu     sync.Mutex
	cursor int

	checkMu  sync.Mutex
	checking map[string]bool
	wg       sync.WaitGroup

	// Cancelled by Wait once its deadline passes.
	ctx  context.Context
	stop context.CancelFunc
}

func NewCredentialService(files port.CredentialFiles, stats port.CredentialStats, extractor port.Extractor, checkURL string) *CredentialService {
	if checkURL == "" {
		checkURL = DefaultCheckURL
	}
	ctx, stop := context.WithCancel(context.Background())
	return &CredentialService{
		ctx:       ctx,
		stop:      stop,
		files:     files,
		stats:     stats,
		extractor: extractor,
		checkURL:  checkURL,
		now:       func() time.Time { return time.Now().UTC() },
		checking:  make(map[string]bool),
	}
}

// List returns the pool in rotation order with usage and health merged in.
func (s *CredentialService) List() ([]domain.Credential, error) {
	creds, err := s.files.List()
	if err != nil {
		return nil, err
	}
	stats, err := s.stats.All()
	if err != nil {
		logger.Warn.Printf("Cannot load credential stats: %v", err)
		stats = nil
	}

	s.checkMu.Lock()
	defer s.checkMu.Unlock()
	for i := range creds {
		if st, ok := stats[creds[i].ID]; ok {
			creds[i].UseCount = st.UseCount
			creds[i].LastUsedAt = st.LastUsedAt
			creds[i].LastValidatedAt = st.LastValidatedAt
			creds[i].Valid = st.Valid
		}
		creds[i].Checking = s.checking[creds[i].ID]
	}
	return creds, nil
}

// Next returns the credential for the next job, cycling through the pool.
// ok is false when the pool is empty. The cursor survives additions and
// removals and is reduced modulo the current pool size.
func (s *CredentialService) Next() (domain.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.files.List()
	if err != nil {
		logger.Warn.Printf("Cannot list credentials: %v", err)
		return domain.Credential{}, false
	}
	if len(creds) == 0 {
		return domain.Credential{}, false
	}

	idx := s.cursor % len(creds)
	s.cursor = idx + 1
	cred := creds[idx]

	if err := s.stats.RecordUse(cred.ID, s.now()); err != nil {
		logger.Warn.Printf("Cannot record credential use for %s: %v", cred.ID, err)
	}
	return cred, true
}

// Add stores an uploaded cookie file under a fresh id. The caller validates
// the content.
func (s *CredentialService) Add(data []byte) (domain.Credential, error) {
	if len(data) == 0 {
		return domain.Credential{}, domain.ErrInvalidCredential
	}
	cred, err := s.files.Write(domain.NewCredentialID(), data)
	if err != nil {
		return domain.Credential{}, err
	}
	logger.Info.Printf("Added credential %s (%d bytes)", cred.ID, cred.Size)
	return cred, nil
}

func (s *CredentialService) Remove(id string) error {
	if err := s.files.Remove(id); err != nil {
		return err
	}
	if err := s.stats.Delete(id); err != nil {
		logger.Warn.Printf("Cannot delete stats for %s: %v", id, err)
	}
	logger.Info.Printf("Removed credential %s", id)
	return nil
}

// RemoveAll empties the pool and returns how many credentials were removed.
func (s *CredentialService) RemoveAll() (int, error) {
	creds, err := s.files.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, c := range creds {
		if err := s.Remove(c.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Check probes the extractor with exactly this credential and records the
// outcome. It does not move the rotation cursor.
func (s *CredentialService) Check(ctx context.Context, id string) (bool, error) {
	path, err := s.files.Path(id)
	if err != nil {
		return false, err
	}
	if !s.exists(id) {
		return false, domain.ErrNotFound
	}

	s.setChecking(id, true)
	defer s.setChecking(id, false)

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	_, probeErr := s.extractor.Info(ctx, s.checkURL, path)
	if probeErr != nil && errors.Is(ctx.Err(), context.Canceled) {
		return false, fmt.Errorf("check %s: %w", id, ctx.Err())
	}
	valid := probeErr == nil
	if err := s.stats.RecordCheck(id, valid, s.now()); err != nil {
		logger.Warn.Printf("Cannot record check for %s: %v", id, err)
	}
	if !valid {
		logger.Info.Printf("Credential %s failed its check: %s", id, logger.SanitizeForLog(probeErr.Error()))
	}
	return valid, nil
}

// CheckAll checks every credential in the background, one at a time, and
// returns how many checks were started. Their Checking flag is set until
// each finishes or the run is cancelled.
func (s *CredentialService) CheckAll(ctx context.Context) (int, error) {
	creds, err := s.files.List()
	if err != nil {
		return 0, err
	}
	for _, c := range creds {
		s.setChecking(c.ID, true)
	}

	checkCtx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(s.ctx, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stopAfter()
		defer cancel()
		for i, c := range creds {
			if checkCtx.Err() != nil || s.ctx.Err() != nil {
				logger.Warn.Printf("Credential checks cancelled, %d skipped", len(creds)-i)
				for _, rest := range creds[i:] {
					s.setChecking(rest.ID, false)
				}
				return
			}
			if _, err := s.Check(checkCtx, c.ID); err != nil {
				logger.Warn.Printf("Check of %s aborted: %v", c.ID, err)
				s.setChecking(c.ID, false)
			}
		}
	}()
	return len(creds), nil
}

// Wait blocks until background checks started by CheckAll have finished.
// When ctx ends first the remaining checks are cancelled, Wait returns once
// they have stopped, and no further background checks will run.
func (s *CredentialService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	s.stop()
	<-done
	return ctx.Err()
}

func (s *CredentialService) exists(id string) bool {
	creds, err := s.files.List()
	if err != nil {
		return false
	}
	for _, c := range creds {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *CredentialService) setChecking(id string, on bool) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()
	if on {
		s.checking[id] = true
	} else {
		delete(s.checking, id)
	}
}
