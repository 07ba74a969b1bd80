package payments

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/swiftcashproject/swiftnode/src/crypto"
)

// Payee is a payee script with the number of votes it received.
type Payee struct {
	Script []byte
	Votes  int
}

// BlockPayees is the vote tally of one height. It is owned by the Manager
// and only accessed under its lock.
type BlockPayees struct {
	Height int64
	Payees []Payee
}

// NewBlockPayees ...
func NewBlockPayees(height int64) *BlockPayees {
	return &BlockPayees{Height: height}
}

// AddPayee adds votes to script.
func (b *BlockPayees) AddPayee(script []byte, votes int) {
	for i := range b.Payees {
		if crypto.ScriptEqual(b.Payees[i].Script, script) {
			b.Payees[i].Votes += votes
			return
		}
	}
	b.Payees = append(b.Payees, Payee{
		Script: append([]byte(nil), script...),
		Votes:  votes,
	})
}

// Payee returns the script with the most votes. The first payee to reach a
// count wins ties.
func (b *BlockPayees) Payee() ([]byte, bool) {
	votes := -1
	var res []byte
	for _, p := range b.Payees {
		if p.Votes > votes {
			res = p.Script
			votes = p.Votes
		}
	}
	return append([]byte(nil), res...), votes > -1
}

// HasPayeeWithVotes reports whether script has at least votes votes.
func (b *BlockPayees) HasPayeeWithVotes(script []byte, votes int) bool {
	for _, p := range b.Payees {
		if p.Votes >= votes && crypto.ScriptEqual(p.Script, script) {
			return true
		}
	}
	return false
}

// Confirmed returns the payees that reached SignaturesRequired votes.
func (b *BlockPayees) Confirmed() [][]byte {
	res := [][]byte{}
	for _, p := range b.Payees {
		if p.Votes >= SignaturesRequired {
			res = append(res, p.Script)
		}
	}
	return res
}

// IsTransactionValid checks that tx pays one of the confirmed payees at least
// required. Without a confirmed payee any transaction is accepted.
func (b *BlockPayees) IsTransactionValid(tx *wire.MsgTx, required int64) error {
	confirmed := b.Confirmed()
	if len(confirmed) == 0 {
		return nil
	}

	possible := make([]string, 0, len(confirmed))
	for _, script := range confirmed {
		for _, out := range tx.TxOut {
			if crypto.ScriptEqual(out.PkScript, script) && out.Value >= required {
				return nil
			}
		}
		possible = append(possible, crypto.ScriptString(script))
	}

	return fmt.Errorf("missing required payment of %d to %s", required, strings.Join(possible, ","))
}

// RequiredPaymentsString lists every payee with its votes, or "Unknown".
func (b *BlockPayees) RequiredPaymentsString() string {
	if len(b.Payees) == 0 {
		return "Unknown"
	}
	parts := make([]string, 0, len(b.Payees))
	for _, p := range b.Payees {
		parts = append(parts, fmt.Sprintf("%s:%d", crypto.ScriptString(p.Script), p.Votes))
	}
	return strings.Join(parts, ", ")
}

// Copy returns a deep copy.
func (b *BlockPayees) Copy() *BlockPayees {
	res := &BlockPayees{Height: b.Height, Payees: make([]Payee, len(b.Payees))}
	for i, p := range b.Payees {
		res.Payees[i] = Payee{Script: append([]byte(nil), p.Script...), Votes: p.Votes}
	}
	return res
}
