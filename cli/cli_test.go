package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golang-blockchain/chain"
	"github.com/golang-blockchain/store"
	"github.com/golang-blockchain/wallet"
)

func TestWalletGenKeysAndGetAddr(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.dat")
	var errBuf bytes.Buffer

	code := RunTo(&errBuf, []string{"wallet", "gen-keys", keyPath})
	require.Equal(t, 0, code, errBuf.String())
	assert.FileExists(t, keyPath)

	kp, err := wallet.Load(keyPath)
	require.NoError(t, err)

	code = RunTo(&errBuf, []string{"wallet", "get-addr", keyPath})
	assert.Equal(t, 0, code)
	_ = kp
}

func TestWalletGenKeysRefusesExistingFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.dat")
	var errBuf bytes.Buffer

	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "gen-keys", keyPath}))
	errBuf.Reset()
	code := RunTo(&errBuf, []string{"wallet", "gen-keys", keyPath})
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, errBuf.String())
}

func TestWalletBuildTxWritesPaymentIntent(t *testing.T) {
	recipientPath := filepath.Join(t.TempDir(), "recipient.dat")
	var errBuf bytes.Buffer
	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "gen-keys", recipientPath}))
	recipient, err := wallet.Load(recipientPath)
	require.NoError(t, err)

	txPath := filepath.Join(t.TempDir(), "payment.json")
	code := RunTo(&errBuf, []string{"wallet", "build-tx", txPath, recipient.PublicKey().String(), "1000"})
	require.Equal(t, 0, code, errBuf.String())

	raw, err := os.ReadFile(txPath)
	require.NoError(t, err)
	var intent paymentIntent
	require.NoError(t, json.Unmarshal(raw, &intent))
	assert.Equal(t, recipient.PublicKey(), intent.To)
	assert.Equal(t, uint64(1000), intent.Value)
}

func TestNodeNewCreatesGenesisChain(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.dat")
	chainPath := filepath.Join(dir, "chain.bin")
	var errBuf bytes.Buffer

	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "gen-keys", keyPath}))
	code := RunTo(&errBuf, []string{"node", "new", "--path", chainPath, "--key", keyPath})
	require.Equal(t, 0, code, errBuf.String())

	c, err := store.Load(chainPath)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Blockchain.Height())
}

func TestRunUnknownCommandReturnsUsage(t *testing.T) {
	var errBuf bytes.Buffer
	code := RunTo(&errBuf, []string{"bogus"})
	assert.Equal(t, 1, code)
	assert.Contains(t, errBuf.String(), "Usage")
}

func TestRunNoArgsReturnsUsage(t *testing.T) {
	var errBuf bytes.Buffer
	code := RunTo(&errBuf, []string{})
	assert.Equal(t, 1, code)
}

// fakeNodeServer stands in for a running node server for the wallet commands
// that talk HTTP (get-funds, send, send-tx): GET /utxos/{addr} returns one
// fixed UTXO of fundValue for kp's address (an empty list for any other),
// and POST /chain accepts any well-formed transaction.
func fakeNodeServer(t *testing.T, kp chain.KeyPair, fundValue uint64) *httptest.Server {
	t.Helper()
	utxo := chain.Utxo{TxHash: chain.NewHash([]byte("seed")), OutputIndex: 0, Value: fundValue, Pubkey: kp.PublicKey()}

	r := mux.NewRouter()
	r.HandleFunc("/utxos/{addr}", func(w http.ResponseWriter, req *http.Request) {
		addr := mux.Vars(req)["addr"]
		pubkey, err := chain.PublicKeyFromHex(addr)
		if err != nil || pubkey != kp.PublicKey() {
			json.NewEncoder(w).Encode([]chain.Utxo{})
			return
		}
		json.NewEncoder(w).Encode([]chain.Utxo{utxo})
	}).Methods(http.MethodGet)
	r.HandleFunc("/chain", func(w http.ResponseWriter, req *http.Request) {
		var tx chain.Transaction
		if err := json.NewDecoder(req.Body).Decode(&tx); err != nil {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	return httptest.NewServer(r)
}

func TestWalletGetFunds(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.dat")
	var errBuf bytes.Buffer
	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "gen-keys", keyPath}))
	kp, err := wallet.Load(keyPath)
	require.NoError(t, err)

	srv := fakeNodeServer(t, kp, 4200)
	defer srv.Close()

	code := RunTo(&errBuf, []string{"wallet", "get-funds", "--node", srv.URL, keyPath})
	assert.Equal(t, 0, code, errBuf.String())
}

func TestWalletSendSubmitsTransaction(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.dat")
	var errBuf bytes.Buffer
	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "gen-keys", keyPath}))
	kp, err := wallet.Load(keyPath)
	require.NoError(t, err)

	recipientPath := filepath.Join(t.TempDir(), "recipient.dat")
	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "gen-keys", recipientPath}))
	recipient, err := wallet.Load(recipientPath)
	require.NoError(t, err)

	srv := fakeNodeServer(t, kp, 4200)
	defer srv.Close()

	code := RunTo(&errBuf, []string{"wallet", "send", "--node", srv.URL, keyPath, recipient.PublicKey().String(), "1000"})
	assert.Equal(t, 0, code, errBuf.String())
}

func TestWalletSendTxFromPaymentIntent(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.dat")
	var errBuf bytes.Buffer
	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "gen-keys", keyPath}))
	kp, err := wallet.Load(keyPath)
	require.NoError(t, err)

	recipientPath := filepath.Join(t.TempDir(), "recipient.dat")
	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "gen-keys", recipientPath}))
	recipient, err := wallet.Load(recipientPath)
	require.NoError(t, err)

	txPath := filepath.Join(t.TempDir(), "payment.json")
	require.Equal(t, 0, RunTo(&errBuf, []string{"wallet", "build-tx", txPath, recipient.PublicKey().String(), "1000"}))

	srv := fakeNodeServer(t, kp, 4200)
	defer srv.Close()

	code := RunTo(&errBuf, []string{"wallet", "send-tx", "--node", srv.URL, keyPath, txPath})
	assert.Equal(t, 0, code, errBuf.String())
}
