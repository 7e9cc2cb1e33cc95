package settlement

import "github.com/zeebo/errs"

var (
	// ErrQueueUnavailable means the queue store could not accept a push or
	// serve a drain. Nothing was mutated.
	ErrQueueUnavailable = errs.Class("queue unavailable")

	// ErrSettlementUnavailable means a ledger transaction failed and the
	// whole run was voided.
	ErrSettlementUnavailable = errs.Class("settlement unavailable")

	// ErrMalformedRecord marks a queue record or inbound request that does
	// not parse into a valid order request.
	ErrMalformedRecord = errs.Class("malformed record")
)
