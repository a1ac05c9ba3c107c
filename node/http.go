package node

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/golang-blockchain/chain"
)

// chainView is the JSON envelope returned by GET /chain:
// `{rules, chain: {list: [...]}}`.
type chainView struct {
	Rules chain.ConsensusRules `json:"rules"`
	Chain struct {
		List []chain.Block `json:"list"`
	} `json:"chain"`
}

// router builds the five-route HTTP surface via gorilla/mux, grounded on
// palaseus-Adrenochain/pkg/api/server.go's mux.Router-backed Server.
func (n *Node) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/chain", n.handleGetChain).Methods(http.MethodGet)
	r.HandleFunc("/chain", n.handlePostChain).Methods(http.MethodPost)
	r.HandleFunc("/utxos/all", n.handleGetUtxosAll).Methods(http.MethodGet)
	r.HandleFunc("/utxos/{addr}", n.handleGetUtxosByAddr).Methods(http.MethodGet)
	r.HandleFunc("/pool", n.handleGetPool).Methods(http.MethodGet)
	return r
}

func (n *Node) handleGetChain(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var view chainView
	view.Rules = n.chain.Rules
	view.Chain.List = n.chain.Blockchain.Blocks

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		n.log.WithError(err).Error("encode chain view")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (n *Node) handlePostChain(w http.ResponseWriter, r *http.Request) {
	var tx chain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, "invalid transaction", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	accepted := n.miner.AddTx(n.chain, tx)
	n.mu.Unlock()

	if !accepted {
		http.Error(w, "transaction rejected", http.StatusBadRequest)
		return
	}
	n.signalMiner()
	w.WriteHeader(http.StatusOK)
}

func (n *Node) handleGetUtxosAll(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	utxos := n.chain.Utxos.All()
	n.mu.Unlock()

	writeJSON(w, n.log, utxos)
}

func (n *Node) handleGetUtxosByAddr(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	pubkey, err := chain.PublicKeyFromHex(addr)
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	utxos := n.chain.Utxos.Select(pubkey)
	n.mu.Unlock()

	writeJSON(w, n.log, utxos)
}

func (n *Node) handleGetPool(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	txs := n.miner.Pool()
	n.mu.Unlock()

	writeJSON(w, n.log, txs)
}

func writeJSON(w http.ResponseWriter, log logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encode response")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// logger is the narrow subset of *logrus.Entry writeJSON needs, kept small
// so it is trivial to satisfy from a test.
type logger interface {
	Error(args ...interface{})
}
