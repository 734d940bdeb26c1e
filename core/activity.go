package core

import (
	"context"
	"time"
)

type ActivityStatus string

const (
	ActivityStatusOK     ActivityStatus = "ok"
	ActivityStatusFailed ActivityStatus = "failed"
)

// Operation names recorded in the activity ledger.
const (
	OperationAuthStart    = "auth.start"
	OperationAuthCallback = "auth.callback"
	OperationAuthExchange = "auth.exchange"
	OperationGraphQLRelay = "graphql.relay"
	OperationUpload       = "upload.run"
)

// ActivityEntry is one proxy operation outcome. Entries never contain access
// tokens or state tokens, only operation metadata.
type ActivityEntry struct {
	ID         string
	Operation  string
	ShopDomain string
	Status     ActivityStatus
	Metadata   map[string]any
	CreatedAt  time.Time
}

type ActivityFilter struct {
	Operation  string
	ShopDomain string
	Status     ActivityStatus
	Page       int
	PerPage    int
}

type ActivityPage struct {
	Items   []ActivityEntry
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

// ActivityRecorder records operation outcomes. A nil recorder disables the
// ledger.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityLedger is the full read/write ledger surface.
type ActivityLedger interface {
	ActivityRecorder
	List(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}
