package domain

// PR actions that trigger an analysis. Everything else is acknowledged and
// dropped.
const (
	ActionOpened      = "opened"
	ActionSynchronize = "synchronize"
)

// AnalysisEvent is the ephemeral unit of work consumed from the queue. It is
// extracted from a GitHub pull_request webhook payload and never persisted.
type AnalysisEvent struct {
	Action          string
	RepositoryOwner string
	RepositoryName  string
	PRNumber        int
	PRTitle         string
	PRAuthor        string
	PRURL           string
}

// Analyzable reports whether the event's action starts the pipeline.
func (e AnalysisEvent) Analyzable() bool {
	return e.Action == ActionOpened || e.Action == ActionSynchronize
}
