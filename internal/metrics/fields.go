package metrics

// Attribute keys shared by the otel instruments.
const (
	AttrMethod  = "method"
	AttrPath    = "path"
	AttrStatus  = "status"
	AttrReason  = "reason"
	AttrCreated = "created"
	AttrOp      = "op"
)

// Drop reasons recorded by the relay.
const (
	DropStaleGame      = "stale_game"
	DropAfterTeardown  = "after_teardown"
	DropSubscriberFull = "subscriber_full"
)
