package nodesync

// Stage is a step of the swiftnode sync.
type Stage int

const (
	// Initial is the stage of a sync that has not started.
	Initial Stage = 0
	// Sporks is the stage asking peers for the feature flags.
	Sporks Stage = 1
	// List is the stage asking peers for the registry.
	List Stage = 2
	// PaymentWinners is the stage asking peers for the payment votes.
	PaymentWinners Stage = 3
	// Budget is the stage asking peers for the budget items.
	Budget Stage = 4
	// BudgetProp only appears in sync counts, for budget proposals.
	BudgetProp Stage = 10
	// BudgetFin only appears in sync counts, for finalized budgets.
	BudgetFin Stage = 11
	// Failed is the stage of a sync waiting to be retried.
	Failed Stage = 998
	// Finished is the stage of a completed sync.
	Finished Stage = 999
)

// String returns the status line of the stage.
func (s Stage) String() string {
	switch s {
	case Initial:
		return "Synchronization pending..."
	case Sporks:
		return "Synchronizing sporks..."
	case List:
		return "Synchronizing swiftnodes..."
	case PaymentWinners:
		return "Synchronizing swiftnode winners..."
	case Budget:
		return "Synchronizing budgets..."
	case Failed:
		return "Synchronization failed"
	case Finished:
		return "Synchronization finished"
	default:
		return ""
	}
}

// next returns the stage that follows s.
func (s Stage) next() Stage {
	switch s {
	case Initial, Failed:
		return Sporks
	case Sporks:
		return List
	case List:
		return PaymentWinners
	case PaymentWinners:
		return Budget
	default:
		return Finished
	}
}

// Name returns the identifier of the stage.
func (s Stage) Name() string {
	switch s {
	case Initial:
		return "SWIFTNODE_SYNC_INITIAL"
	case Sporks:
		return "SWIFTNODE_SYNC_SPORKS"
	case List:
		return "SWIFTNODE_SYNC_LIST"
	case PaymentWinners:
		return "SWIFTNODE_SYNC_MNW"
	case Budget:
		return "SWIFTNODE_SYNC_BUDGET"
	case BudgetProp:
		return "SWIFTNODE_SYNC_BUDGET_PROP"
	case BudgetFin:
		return "SWIFTNODE_SYNC_BUDGET_FIN"
	case Failed:
		return "SWIFTNODE_SYNC_FAILED"
	case Finished:
		return "SWIFTNODE_SYNC_FINISHED"
	default:
		return "SWIFTNODE_SYNC_UNKNOWN"
	}
}
