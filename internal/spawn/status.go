package spawn

// Status is the progress of a spawn task. Values are ordered: anything below
// StatusNone means the task ended without a usable server, anything between
// StatusNone and StatusFinalized is still in progress.
type Status int

const (
	StatusKilled  Status = -2
	StatusAborted Status = -1
	StatusNone    Status = 0

	StatusQueued            Status = 1
	StatusStartingProcess   Status = 2
	StatusWaitingForProcess Status = 3
	StatusProcessRegistered Status = 4
	StatusFinalized         Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusKilled:
		return "killed"
	case StatusAborted:
		return "aborted"
	case StatusNone:
		return "none"
	case StatusQueued:
		return "queued"
	case StatusStartingProcess:
		return "starting_process"
	case StatusWaitingForProcess:
		return "waiting_for_process"
	case StatusProcessRegistered:
		return "process_registered"
	case StatusFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// InProgress reports whether s lies strictly between StatusNone and StatusFinalized.
func (s Status) InProgress() bool {
	return s > StatusNone && s < StatusFinalized
}

// Ended reports whether the task can no longer produce a server.
func (s Status) Ended() bool {
	return s < StatusNone
}
