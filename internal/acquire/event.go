package acquire

type Event interface {
	// The JobState snapshot this event relates to.
	Job() JobState
}

type jobEvent struct {
	job JobState
}

func (e jobEvent) Job() JobState {
	return e.job
}

type JobUpdated struct {
	jobEvent
	OldState JobState
}

type JobProgress struct {
	jobEvent
	Downloaded int
	Expected   int
}
