// Package cli implements the node and wallet command-line surface.
// Grounded on cli/cli.go's CommandLine struct and its validateArgs/
// per-command flag.FlagSet idiom, generalized from
// getbalance/createblockchain/send/startnode to this ledger's
// node new|start and wallet gen-keys|get-addr|get-funds|send|
// build-tx|send-tx commands.
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/golang-blockchain/chain"
	"github.com/golang-blockchain/miner"
	"github.com/golang-blockchain/node"
	"github.com/golang-blockchain/store"
	"github.com/golang-blockchain/wallet"
)

// Run dispatches args (os.Args[1:]) to the node or wallet command group. It
// writes errors to stderr and returns the process exit code: 0 on success,
// 1 on any error.
func Run(args []string) int {
	return RunTo(os.Stderr, args)
}

// RunTo is Run with an explicit error writer, kept separate so tests can
// capture output without touching os.Stderr.
func RunTo(errOut io.Writer, args []string) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 1
	}

	var err error
	switch args[0] {
	case "node":
		err = runNode(args[1:])
	case "wallet":
		err = runWallet(args[1:])
	default:
		printUsage(errOut)
		return 1
	}

	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  node new --path <file> --key <file>")
	fmt.Fprintln(w, "  node start --path <file> --recipient <keyfile> [--addr host:port]")
	fmt.Fprintln(w, "  wallet gen-keys <keyfile>")
	fmt.Fprintln(w, "  wallet get-addr <keyfile>")
	fmt.Fprintln(w, "  wallet get-funds [--node URL] <keyfile>")
	fmt.Fprintln(w, "  wallet send [--node URL] <keyfile> <addr> <value>")
	fmt.Fprintln(w, "  wallet build-tx <txfile> <addr> <value>")
	fmt.Fprintln(w, "  wallet send-tx [--node URL] <keyfile> <txfile>")
}

func runNode(args []string) error {
	if len(args) == 0 {
		return errors.New("node: missing subcommand (new|start)")
	}
	switch args[0] {
	case "new":
		return nodeNew(args[1:])
	case "start":
		return nodeStart(args[1:])
	default:
		return errors.Errorf("node: unknown subcommand %q", args[0])
	}
}

func nodeNew(args []string) error {
	fs := flag.NewFlagSet("node new", flag.ContinueOnError)
	path := fs.String("path", "", "file to persist the new chain to")
	keyPath := fs.String("key", "", "key file the genesis coinbase pays to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || *keyPath == "" {
		return errors.New("node new: --path and --key are required")
	}

	kp, err := wallet.Load(*keyPath)
	if err != nil {
		return errors.Wrap(err, "load recipient key")
	}

	c, err := chain.NewChainWithGenesis(chain.DefaultConsensusRules(), kp.PublicKey())
	if err != nil {
		return errors.Wrap(err, "create genesis chain")
	}
	if err := store.Save(*path, c); err != nil {
		return errors.Wrap(err, "persist new chain")
	}
	return nil
}

func nodeStart(args []string) error {
	fs := flag.NewFlagSet("node start", flag.ContinueOnError)
	path := fs.String("path", "", "file the chain is persisted to")
	recipientPath := fs.String("recipient", "", "key file mined block rewards are paid to")
	addr := fs.String("addr", "127.0.0.1:8080", "address to serve the HTTP surface on")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || *recipientPath == "" {
		return errors.New("node start: --path and --recipient are required")
	}

	c, err := store.Load(*path)
	if err != nil {
		return errors.Wrap(err, "load persisted chain")
	}
	if err := c.ValidateChain(); err != nil {
		return errors.Wrap(err, "persisted chain failed validation")
	}

	recipient, err := wallet.Load(*recipientPath)
	if err != nil {
		return errors.Wrap(err, "load recipient key")
	}

	m := miner.New(recipient.PublicKey())
	n := node.New(*path, *addr, c, m)
	return n.Run()
}

func runWallet(args []string) error {
	if len(args) == 0 {
		return errors.New("wallet: missing subcommand")
	}
	switch args[0] {
	case "gen-keys":
		return walletGenKeys(args[1:])
	case "get-addr":
		return walletGetAddr(args[1:])
	case "get-funds":
		return walletGetFunds(args[1:])
	case "send":
		return walletSend(args[1:])
	case "build-tx":
		return walletBuildTx(args[1:])
	case "send-tx":
		return walletSendTx(args[1:])
	default:
		return errors.Errorf("wallet: unknown subcommand %q", args[0])
	}
}

func walletGenKeys(args []string) error {
	if len(args) != 1 {
		return errors.New("wallet gen-keys: usage: wallet gen-keys <keyfile>")
	}
	if _, err := wallet.Generate(args[0]); err != nil {
		return errors.Wrap(err, "generate key pair")
	}
	return nil
}

func walletGetAddr(args []string) error {
	if len(args) != 1 {
		return errors.New("wallet get-addr: usage: wallet get-addr <keyfile>")
	}
	kp, err := wallet.Load(args[0])
	if err != nil {
		return errors.Wrap(err, "load key")
	}
	fmt.Println(kp.PublicKey().String())
	return nil
}

func walletGetFunds(args []string) error {
	fs := flag.NewFlagSet("wallet get-funds", flag.ContinueOnError)
	nodeURL := fs.String("node", "", "node base URL, default http://127.0.0.1:8080")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return errors.New("wallet get-funds: usage: wallet get-funds [--node URL] <keyfile>")
	}

	kp, err := wallet.Load(rest[0])
	if err != nil {
		return errors.Wrap(err, "load key")
	}
	utxos, err := newNodeClient(*nodeURL).utxosFor(kp.PublicKey())
	if err != nil {
		return errors.Wrap(err, "fetch utxos")
	}

	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	fmt.Println(total)
	return nil
}

func walletSend(args []string) error {
	fs := flag.NewFlagSet("wallet send", flag.ContinueOnError)
	nodeURL := fs.String("node", "", "node base URL, default http://127.0.0.1:8080")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 3 {
		return errors.New("wallet send: usage: wallet send [--node URL] <keyfile> <addr> <value>")
	}
	keyPath, addrHex, valueStr := rest[0], rest[1], rest[2]

	kp, err := wallet.Load(keyPath)
	if err != nil {
		return errors.Wrap(err, "load key")
	}
	recipient, err := chain.PublicKeyFromHex(addrHex)
	if err != nil {
		return errors.Wrap(err, "parse recipient address")
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return errors.Wrap(err, "parse value")
	}

	client := newNodeClient(*nodeURL)
	utxos, err := client.utxosFor(kp.PublicKey())
	if err != nil {
		return errors.Wrap(err, "fetch utxos")
	}
	tx, err := wallet.BuildTransactionFromUtxos(utxos, kp, recipient, value)
	if err != nil {
		return errors.Wrap(err, "build transaction")
	}
	if err := client.submitTx(tx); err != nil {
		return errors.Wrap(err, "submit transaction")
	}
	return nil
}

// paymentIntent is the offline artifact wallet build-tx writes and
// wallet send-tx later reads: the payee and amount, deferring UTXO
// selection and signing until send-tx knows which key funds the payment
// (see DESIGN.md).
type paymentIntent struct {
	To    chain.PublicKey `json:"to"`
	Value uint64          `json:"value"`
}

func walletBuildTx(args []string) error {
	if len(args) != 3 {
		return errors.New("wallet build-tx: usage: wallet build-tx <txfile> <addr> <value>")
	}
	txPath, addrHex, valueStr := args[0], args[1], args[2]

	recipient, err := chain.PublicKeyFromHex(addrHex)
	if err != nil {
		return errors.Wrap(err, "parse recipient address")
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return errors.Wrap(err, "parse value")
	}

	intent := paymentIntent{To: recipient, Value: value}
	data, err := json.MarshalIndent(intent, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode payment intent")
	}
	if err := os.WriteFile(txPath, data, 0o600); err != nil {
		return errors.Wrap(err, "write payment intent")
	}
	return nil
}

func walletSendTx(args []string) error {
	fs := flag.NewFlagSet("wallet send-tx", flag.ContinueOnError)
	nodeURL := fs.String("node", "", "node base URL, default http://127.0.0.1:8080")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return errors.New("wallet send-tx: usage: wallet send-tx [--node URL] <keyfile> <txfile>")
	}
	keyPath, txPath := rest[0], rest[1]

	kp, err := wallet.Load(keyPath)
	if err != nil {
		return errors.Wrap(err, "load key")
	}

	raw, err := os.ReadFile(txPath)
	if err != nil {
		return errors.Wrap(err, "read payment intent")
	}
	var intent paymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return errors.Wrap(err, "decode payment intent")
	}

	client := newNodeClient(*nodeURL)
	utxos, err := client.utxosFor(kp.PublicKey())
	if err != nil {
		return errors.Wrap(err, "fetch utxos")
	}
	tx, err := wallet.BuildTransactionFromUtxos(utxos, kp, intent.To, intent.Value)
	if err != nil {
		return errors.Wrap(err, "build transaction")
	}
	if err := client.submitTx(tx); err != nil {
		return errors.Wrap(err, "submit transaction")
	}
	return nil
}
