package enrich

import (
	"time"

	"github.com/raine/lease-to-own/internal/storage"
)

// Status is the result of one enrichment run.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusNoop      Status = "noop"
	StatusFailed    Status = "failed"
)

// No-op reasons
const (
	ReasonDeleted       = "listing deleted"
	ReasonMissing       = "listing not found"
	ReasonBaseUnchanged = "base fields unchanged"
	ReasonDeletedMidRun = "listing deleted before commit"
)

// Outcome describes what a single orchestrator run did. Block is set only
// for committed runs and Err only for failed ones.
type Outcome struct {
	Status    Status
	ListingID string
	Block     *storage.AIBlock
	Reason    string
	Err       error
	Duration  time.Duration
}

func noop(listingID, reason string) Outcome {
	return Outcome{Status: StatusNoop, ListingID: listingID, Reason: reason}
}

func failed(listingID string, err error) Outcome {
	return Outcome{Status: StatusFailed, ListingID: listingID, Reason: err.Error(), Err: err}
}
