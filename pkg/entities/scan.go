package entities

// IngestOutcome classifies what happened to a single ingested post.
type IngestOutcome string

const (
	// OutcomeAdded means a new registry entry was created for the post.
	OutcomeAdded IngestOutcome = "added"

	// OutcomeDuplicate means the post's code is already registered and the
	// post was rejected.
	OutcomeDuplicate IngestOutcome = "duplicate"

	// OutcomeSkipped means the post carried no recognizable code.
	OutcomeSkipped IngestOutcome = "skipped"
)

// ScanSummary accumulates per-post outcomes of a history scan.
type ScanSummary struct {
	Processed  int
	Added      int
	Duplicates int
	Skipped    int
	Failed     int

	// LastMessageID is the id of the last post the scan consumed. A retried
	// scan passes it back so committed entries are not re-attempted.
	LastMessageID int
}
