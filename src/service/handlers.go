package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gorilla/mux"
	"github.com/swiftcashproject/swiftnode/src/common"
	"github.com/swiftcashproject/swiftnode/src/nodesync"
	"github.com/swiftcashproject/swiftnode/src/payments"
	"github.com/swiftcashproject/swiftnode/src/swiftnode"
)

// winnersAhead is how many heights past the tip /winners reports.
const winnersAhead = payments.VoteLookahead

// NodeInfo is the public view of a registry record.
type NodeInfo struct {
	OutPoint      string `json:"outpoint"`
	TxHash        string `json:"txhash"`
	OutputIndex   uint32 `json:"outidx"`
	Rank          int    `json:"rank,omitempty"`
	Status        string `json:"status"`
	Addr          string `json:"addr"`
	Protocol      int32  `json:"version"`
	Payee         string `json:"payee"`
	LastSeen      int64  `json:"lastseen"`
	ActiveSeconds int64  `json:"activetime"`
	LastPaid      int64  `json:"lastpaidtime"`
}

// StatusInfo is the status of the local swiftnode.
type StatusInfo struct {
	Swiftnode bool   `json:"swiftnode"`
	Code      int    `json:"code"`
	Status    string `json:"status"`
	OutPoint  string `json:"outpoint,omitempty"`
	Service   string `json:"netaddr,omitempty"`
}

// WinnerInfo lists the payees voted for a height.
type WinnerInfo struct {
	Height int64  `json:"nHeight"`
	Payees string `json:"winner"`
}

// SyncInfo is the state of the bootstrap sync.
type SyncInfo struct {
	Stage            string         `json:"stage"`
	Status           string         `json:"status"`
	Synced           bool           `json:"synced"`
	ListSynced       bool           `json:"list_synced"`
	BlockchainSynced bool           `json:"blockchain_synced"`
	Failures         int            `json:"failures"`
	BudgetPropEmpty  bool           `json:"budget_prop_empty"`
	BudgetFinEmpty   bool           `json:"budget_fin_empty"`
	Counts           map[string]int `json:"counts"`
}

// ConfInfo is a swiftnode.conf entry without its secret.
type ConfInfo struct {
	Alias       string `json:"alias"`
	Address     string `json:"address"`
	TxHash      string `json:"txHash"`
	OutputIndex string `json:"outputIndex"`
	Status      string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Service) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.WithError(err).Debug("API error")
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func (s *Service) nodeInfo(rec *swiftnode.Record, rank int) NodeInfo {
	return NodeInfo{
		OutPoint:      rec.OutPoint.String(),
		TxHash:        rec.OutPoint.Hash.String(),
		OutputIndex:   rec.OutPoint.Index,
		Rank:          rank,
		Status:        rec.Status(),
		Addr:          rec.Addr,
		Protocol:      rec.ProtocolVersion,
		Payee:         common.EncodeToString(rec.Payee()),
		LastSeen:      rec.LastPing.SigTime,
		ActiveSeconds: rec.LastPing.SigTime - rec.SigTime,
		LastPaid:      s.node.Payments().LastPaidTime(rec.Payee()),
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.GetStats())
}

// GetStatus reports the local swiftnode.
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	c := s.node.Active()
	res := StatusInfo{
		Swiftnode: c.IsSwiftnode(),
		Code:      int(c.State()),
		Status:    c.Status(),
	}
	if op, ok := c.Identity(); ok {
		res.OutPoint = op.String()
		res.Service = c.ServiceAddr()
	}
	writeJSON(w, http.StatusOK, res)
}

// GetNodes lists the registry ranked at the tip. The optional status query
// parameter filters on the record status.
func (s *Service) GetNodes(w http.ResponseWriter, r *http.Request) {
	tip, err := s.node.Tip()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	filter := r.URL.Query().Get("status")

	res := []NodeInfo{}
	for _, ranked := range s.node.Registry().Ranks(tip, 0) {
		if filter != "" && ranked.Record.Status() != filter {
			continue
		}
		res = append(res, s.nodeInfo(ranked.Record, ranked.Rank))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetNode returns the record of the collateral {hash}/{index}.
func (s *Service) GetNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	hash, err := chainhash.NewHashFromStr(vars["hash"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	index, err := strconv.ParseUint(vars["index"], 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	op := wire.NewOutPoint(hash, uint32(index))

	rec, err := s.node.Registry().Find(*op)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	rank := 0
	if tip, err := s.node.Tip(); err == nil {
		rank = s.node.Registry().Rank(*op, tip, 0, false)
	}
	writeJSON(w, http.StatusOK, s.nodeInfo(rec, rank))
}

// GetRank returns the node ranked {rank} at the tip. With active=true only
// enabled nodes are ranked.
func (s *Service) GetRank(w http.ResponseWriter, r *http.Request) {
	rank, err := strconv.Atoi(mux.Vars(r)["rank"])
	if err != nil || rank < 1 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid rank %q", mux.Vars(r)["rank"]))
		return
	}
	onlyActive := r.URL.Query().Get("active") == "true"

	tip, err := s.node.Tip()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	rec, err := s.node.Registry().ByRank(rank, tip, 0, onlyActive)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.nodeInfo(rec, rank))
}

// GetCurrent returns the node with the best score for the next block.
func (s *Service) GetCurrent(w http.ResponseWriter, r *http.Request) {
	tip, err := s.node.Tip()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	rec, err := s.node.Registry().CurrentWinner(tip+1, 0)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.nodeInfo(rec, 1))
}

// GetWinners lists the voted payees from blocks (default 10) heights below
// the tip to winnersAhead above it.
func (s *Service) GetWinners(w http.ResponseWriter, r *http.Request) {
	last := int64(10)
	if q := r.URL.Query().Get("blocks"); q != "" {
		v, err := strconv.ParseInt(q, 10, 64)
		if err != nil || v < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid blocks %q", q))
			return
		}
		last = v
	}

	tip, err := s.node.Tip()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	res := []WinnerInfo{}
	for h := tip - last; h < tip+winnersAhead; h++ {
		res = append(res, WinnerInfo{
			Height: h,
			Payees: s.node.Payments().RequiredPaymentsString(h),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

// GetSync reports the bootstrap sync.
func (s *Service) GetSync(w http.ResponseWriter, r *http.Request) {
	syncer := s.node.Syncer()

	counts := make(map[string]int)
	for stage, c := range syncer.SyncCounts() {
		counts[stage.Name()] = c
	}

	writeJSON(w, http.StatusOK, SyncInfo{
		Stage:            syncer.Stage().Name(),
		Status:           syncer.Status(),
		Synced:           syncer.Stage() == nodesync.Finished,
		ListSynced:       syncer.IsListSynced(),
		BlockchainSynced: syncer.IsBlockchainSynced(),
		Failures:         syncer.Failures(),
		BudgetPropEmpty:  syncer.IsBudgetPropEmpty(),
		BudgetFinEmpty:   syncer.IsBudgetFinEmpty(),
		Counts:           counts,
	})
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Peers().List())
}

// GetConf lists the swiftnode.conf entries with the registry status of their
// collateral.
func (s *Service) GetConf(w http.ResponseWriter, r *http.Request) {
	res := []ConfInfo{}
	if s.conf != nil {
		for _, e := range s.conf.Entries {
			status := "MISSING"
			if op, err := e.OutPoint(); err == nil {
				if rec, err := s.node.Registry().Find(op); err == nil {
					status = rec.Status()
				}
			}
			res = append(res, ConfInfo{
				Alias:       e.Alias,
				Address:     e.Addr,
				TxHash:      e.TxHash,
				OutputIndex: e.OutputIndex,
				Status:      status,
			})
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// StartAlias announces the swiftnode.conf entry {alias}.
func (s *Service) StartAlias(w http.ResponseWriter, r *http.Request) {
	alias := mux.Vars(r)["alias"]

	if s.conf == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no swiftnode.conf loaded"))
		return
	}
	e, ok := s.conf.Find(alias)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("could not find alias %q in swiftnode.conf", alias))
		return
	}
	index, err := e.Index()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := s.node.StartAlias(e.Addr, e.PrivKey, e.TxHash, index)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"alias":  alias,
			"result": "failed",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"alias":    alias,
		"result":   "successful",
		"outpoint": a.OutPoint.String(),
	})
}
