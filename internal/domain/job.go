package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusMerging     JobStatus = "merging"
	JobStatusTranslating JobStatus = "translating"
	JobStatusBurning     JobStatus = "burning"
	JobStatusDone        JobStatus = "done"
	JobStatusError       JobStatus = "error"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// transitions lists the forward edges of the job state machine. Error is
// reachable from every non-terminal state and is handled in CanTransition.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:     {JobStatusQueued, JobStatusDownloading},
	JobStatusQueued:      {JobStatusDownloading},
	JobStatusDownloading: {JobStatusDownloading, JobStatusMerging, JobStatusDone},
	JobStatusMerging:     {JobStatusTranslating, JobStatusBurning, JobStatusDone},
	JobStatusTranslating: {JobStatusBurning, JobStatusDone},
	JobStatusBurning:     {JobStatusDone},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == JobStatusError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Job struct {
	ID            string    `json:"job_id"`
	Status        JobStatus `json:"status"`
	Progress      int       `json:"progress"`
	StageProgress int       `json:"stage_progress"`
	Speed         string    `json:"speed"`
	ETA           string    `json:"eta"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Quality       Quality   `json:"quality"`
	BurnSubtitle  bool      `json:"burn_subtitle"`
	QueuePosition int       `json:"queue_position"`
	OriginalPath  string    `json:"-"`
	OriginalName  string    `json:"original_filename,omitempty"`
	BurnedPath    string    `json:"-"`
	BurnedName    string    `json:"burned_filename,omitempty"`
	BurnError     string    `json:"burn_error,omitempty"`
	Error         string    `json:"error,omitempty"`
	OwnerID       string    `json:"-"`
	Dir           string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	CompletedAt   time.Time `json:"completed_at,omitzero"`
}

func NewJob(url string, quality Quality, burnSubtitle bool, ownerID string) *Job {
	// Audio-only output has no picture to burn into.
	if quality == QualityAudio {
		burnSubtitle = false
	}
	return &Job{
		ID:           generateID(),
		Status:       JobStatusPending,
		URL:          url,
		Quality:      quality,
		BurnSubtitle: burnSubtitle,
		OwnerID:      ownerID,
		CreatedAt:    time.Now().UTC(),
	}
}

func generateID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}

// VisibleTo reports whether the caller may read this job. Jobs without an
// owner predate ownership tracking and stay readable by anyone.
func (j *Job) VisibleTo(callerID string) bool {
	return j.OwnerID == "" || j.OwnerID == callerID
}

// Clone returns a copy safe to hand out of a store.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// Supersedes reports whether j may replace prev as the latest known state
// of the same job. Terminal snapshots are final and progress never moves
// backwards, so anything else arrived out of order.
func (j *Job) Supersedes(prev *Job) bool {
	switch {
	case prev == nil:
		return true
	case prev.Status.IsTerminal():
		return false
	case j.Status.IsTerminal():
		return true
	}
	return j.Progress >= prev.Progress
}

// JobUpdate is a partial update applied atomically to a job record. Nil
// fields are left untouched.
type JobUpdate struct {
	Status        *JobStatus
	Progress      *int
	StageProgress *int
	Speed         *string
	ETA           *string
	Title         *string
	QueuePosition *int
	OriginalPath  *string
	OriginalName  *string
	BurnedPath    *string
	BurnedName    *string
	BurnError     *string
	Error         *string
}

func (u JobUpdate) WithStatus(s JobStatus) JobUpdate       { u.Status = &s; return u }
func (u JobUpdate) WithProgress(p int) JobUpdate           { u.Progress = &p; return u }
func (u JobUpdate) WithStageProgress(p int) JobUpdate      { u.StageProgress = &p; return u }
func (u JobUpdate) WithSpeed(s string) JobUpdate           { u.Speed = &s; return u }
func (u JobUpdate) WithETA(s string) JobUpdate             { u.ETA = &s; return u }
func (u JobUpdate) WithTitle(s string) JobUpdate           { u.Title = &s; return u }
func (u JobUpdate) WithQueuePosition(p int) JobUpdate      { u.QueuePosition = &p; return u }
func (u JobUpdate) WithBurnError(s string) JobUpdate       { u.BurnError = &s; return u }
func (u JobUpdate) WithError(s string) JobUpdate           { u.Error = &s; return u }
func (u JobUpdate) WithOriginal(path, name string) JobUpdate {
	u.OriginalPath, u.OriginalName = &path, &name
	return u
}
func (u JobUpdate) WithBurned(path, name string) JobUpdate {
	u.BurnedPath, u.BurnedName = &path, &name
	return u
}

// Apply mutates the job in place. It validates the whole update before
// touching any field, so a rejected update leaves the job unchanged.
func (j *Job) Apply(u JobUpdate, now time.Time) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobTerminal, j.ID, j.Status)
	}
	if u.Status != nil && *u.Status != j.Status && !CanTransition(j.Status, *u.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, *u.Status)
	}
	if u.OriginalPath != nil && j.OriginalPath != "" && *u.OriginalPath != j.OriginalPath {
		return fmt.Errorf("%w: original", ErrArtifactAlreadySet)
	}
	if u.BurnedPath != nil && j.BurnedPath != "" && *u.BurnedPath != j.BurnedPath {
		return fmt.Errorf("%w: burned", ErrArtifactAlreadySet)
	}

	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil && *u.Progress > j.Progress {
		j.Progress = min(*u.Progress, 100)
	}
	if u.StageProgress != nil {
		j.StageProgress = clampPercent(*u.StageProgress)
	}
	if u.Speed != nil {
		j.Speed = *u.Speed
	}
	if u.ETA != nil {
		j.ETA = *u.ETA
	}
	if u.Title != nil {
		j.Title = *u.Title
	}
	if u.QueuePosition != nil && j.Status == JobStatusQueued {
		j.QueuePosition = *u.QueuePosition
	}
	if j.Status != JobStatusQueued && j.Status != JobStatusPending {
		j.QueuePosition = 0
	}
	if u.OriginalPath != nil {
		j.OriginalPath = *u.OriginalPath
	}
	if u.OriginalName != nil {
		j.OriginalName = *u.OriginalName
	}
	if u.BurnedPath != nil {
		j.BurnedPath = *u.BurnedPath
	}
	if u.BurnedName != nil {
		j.BurnedName = *u.BurnedName
	}
	if u.BurnError != nil {
		j.BurnError = *u.BurnError
	}
	if u.Error != nil {
		j.Error = *u.Error
	}

	if j.Status.IsTerminal() {
		j.CompletedAt = now
		j.Speed, j.ETA = "", ""
		if j.Status == JobStatusDone {
			j.Progress = 100
			j.StageProgress = 100
		}
	}
	return nil
}

// IsExpired reports whether a finished job has outlived the retention window.
func (j *Job) IsExpired(retention time.Duration, now time.Time) bool {
	return j.Status.IsTerminal() && !j.CompletedAt.IsZero() && now.Sub(j.CompletedAt) > retention
}

func clampPercent(p int) int {
	return max(0, min(p, 100))
}

// ProgressBand maps a stage-local percentage onto the overall progress scale.
type ProgressBand struct {
	Lo, Hi int
}

func (b ProgressBand) Map(stagePercent float64) int {
	if stagePercent < 0 {
		stagePercent = 0
	}
	if stagePercent > 100 {
		stagePercent = 100
	}
	return b.Lo + int(stagePercent*float64(b.Hi-b.Lo)/100)
}

// Bands returns the progress bands for the download, translation and
// burn-in stages. Without burn-in the download covers nearly everything.
func Bands(burnSubtitle bool) (download, translate, burn ProgressBand) {
	if !burnSubtitle {
		return ProgressBand{0, 99}, ProgressBand{99, 99}, ProgressBand{99, 99}
	}
	return ProgressBand{0, 50}, ProgressBand{50, 60}, ProgressBand{60, 99}
}
