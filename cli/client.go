package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/golang-blockchain/chain"
)

// defaultNodeURL is the node address the wallet commands talk to when
// --node is not given.
const defaultNodeURL = "http://127.0.0.1:8080"

// nodeClient is a thin wrapper over net/http for the two wallet-facing
// routes a CLI needs (GET /utxos/{addr}, POST /chain). No third-party HTTP
// client is warranted here — the pack's own node-to-node traffic
// (network/network.go) is raw TCP/gob, not HTTP, so there is no teacher
// precedent for an HTTP client library to adopt (see DESIGN.md).
type nodeClient struct {
	base string
}

func newNodeClient(base string) *nodeClient {
	if base == "" {
		base = defaultNodeURL
	}
	return &nodeClient{base: base}
}

// utxosFor fetches the unspent outputs belonging to pubkey from the node.
func (c *nodeClient) utxosFor(pubkey chain.PublicKey) ([]chain.Utxo, error) {
	url := fmt.Sprintf("%s/utxos/%s", c.base, pubkey.String())
	resp, err := http.Get(url)
	if err != nil {
		return nil, errors.Wrap(err, "request utxos")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("node returned %s fetching utxos", resp.Status)
	}
	var utxos []chain.Utxo
	if err := json.NewDecoder(resp.Body).Decode(&utxos); err != nil {
		return nil, errors.Wrap(err, "decode utxos response")
	}
	return utxos, nil
}

// submitTx POSTs tx to the node's mempool ingress endpoint.
func (c *nodeClient) submitTx(tx chain.Transaction) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return errors.Wrap(err, "encode transaction")
	}
	resp, err := http.Post(c.base+"/chain", "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "submit transaction")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("node rejected transaction: %s", resp.Status)
	}
	return nil
}
