package swiftnode

// State is the lifecycle state of a swiftnode record.
type State uint32

const (
	// PreEnabled is the state of a node that has announced itself but whose
	// heartbeats do not yet span the bring-up interval.
	PreEnabled State = iota

	// Enabled nodes take part in elections and payments.
	Enabled

	// Expired nodes have not sent a heartbeat within the expiration window.
	Expired

	// CollateralSpent is terminal: the collateral output has been spent.
	CollateralSpent

	// Removed nodes have been silent past the removal window.
	Removed

	// PoseBanned nodes failed proof-of-service checks.
	PoseBanned

	// AddressInvalid nodes advertise an unroutable address.
	AddressInvalid
)

// String returns the status string of a State, as reported to users.
func (s State) String() string {
	switch s {
	case PreEnabled:
		return "PRE_ENABLED"
	case Enabled:
		return "ENABLED"
	case Expired:
		return "EXPIRED"
	case CollateralSpent:
		return "VIN_SPENT"
	case Removed:
		return "REMOVE"
	case PoseBanned:
		return "POSE_BAN"
	case AddressInvalid:
		return "POS_ERROR"
	default:
		return "UNKNOWN"
	}
}
