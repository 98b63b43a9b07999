package model

import "time"

// JobState is the lifecycle of the long-running autopilot job.
type JobState string

// Autopilot job states. A pause request moves the job to stopping; the
// runner notices between chunks and parks it back at idle with the queue
// intact, so the job can resume from the last completed unit.
const (
	JobIdle     JobState = "idle"
	JobRunning  JobState = "running"
	JobStopping JobState = "stopping"
	JobDone     JobState = "done"
)

// AutopilotJob is the persisted progress record for a multi-chunk scoring
// run. Queue holds the chunks not yet processed, each a list of order
// numbers; Processed counts orders already committed.
type AutopilotJob struct {
	StartedAt    time.Time
	UpdatedAt    time.Time
	State        JobState
	BatchID      string
	Queue        [][]string
	FailedOrders []string
	Processed    int
	Total        int
}

// Remaining returns the number of orders still queued.
func (j *AutopilotJob) Remaining() int {
	n := 0
	for _, chunk := range j.Queue {
		n += len(chunk)
	}
	return n
}
