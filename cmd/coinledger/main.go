// Command coinledger is the node/wallet CLI entry point. Grounded on
// main.go's "defer os.Exit(cli.Run())" shape, adapted so Run returns an
// explicit exit code rather than relying on runtime.Goexit() inside deferred
// database-close calls (this ledger has no per-process database handle to
// protect).
package main

import (
	"os"

	"github.com/golang-blockchain/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
