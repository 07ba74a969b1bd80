package active

// Status is the status of the local swiftnode.
type Status int

const (
	// Initial ...
	Initial Status = iota
	// SyncInProcess ...
	SyncInProcess
	// InputTooNew ...
	InputTooNew
	// NotCapable ...
	NotCapable
	// Started ...
	Started
)

// String returns the status line reported to users.
func (s Status) String() string {
	switch s {
	case Initial:
		return "Node just started, not yet activated"
	case SyncInProcess:
		return "Sync in progress. Must wait until sync is complete to start Swiftnode"
	case InputTooNew:
		return "Swiftnode input must have at least 20 confirmations"
	case NotCapable:
		return "Not capable swiftnode"
	case Started:
		return "Swiftnode successfully started"
	default:
		return "unknown"
	}
}
