package acquire

import (
	"github.com/dmaltsev/media-courier/generic"
)

type Status string

const (
	StatusUndefined    Status = ""
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusThumbnailing Status = "thumbnailing"
	StatusDelivering   Status = "delivering"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

var runningStatuses = generic.NewSet(
	StatusDownloading,
	StatusThumbnailing,
	StatusDelivering,
)

// IsRunning returns true if the status is one where some active process should be updating the
// job in some way.
func (s Status) IsRunning() bool {
	return runningStatuses.Contains(s)
}

// IsTerminal returns true if the status is one the job can never leave.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}
