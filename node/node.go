// Package node wires together a Chain and a Miner behind an HTTP ingress
// surface and a mining loop, under a single mutex rather than two separate
// locks. Grounded on network/network.go's StartServer/CloseDB wiring
// (goroutine plus vrecan/death signal handling) and cli/cli.go's
// subcommand-driven node lifecycle, adapted from a P2P listener to an HTTP
// server.
package node

import (
	"context"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	death "github.com/vrecan/death/v3"

	"github.com/golang-blockchain/chain"
	"github.com/golang-blockchain/miner"
	"github.com/golang-blockchain/store"
)

// miningInterval bounds how long the mining loop waits for a ready signal
// before attempting to mine anyway.
const miningInterval = 60 * time.Second

// Node owns a Chain and a Miner behind one mutex, an HTTP server, and the
// path the chain is persisted to.
type Node struct {
	mu    sync.Mutex
	chain *chain.Chain
	miner *miner.Miner

	path   string
	addr   string
	server *http.Server
	ready  chan struct{}
	log    *logrus.Entry
}

// New wires a Node around an already-loaded chain and miner, persisting to
// path and serving on addr.
func New(path, addr string, c *chain.Chain, m *miner.Miner) *Node {
	return &Node{
		chain: c,
		miner: m,
		path:  path,
		addr:  addr,
		ready: make(chan struct{}, 1),
		log:   logrus.WithField("component", "node"),
	}
}

// signalMiner wakes the mining loop without blocking if it is already
// pending a wake-up.
func (n *Node) signalMiner() {
	select {
	case n.ready <- struct{}{}:
	default:
	}
}

// Run starts the HTTP server and the mining loop and blocks until a SIGINT
// or SIGTERM is received, at which point it stops both, persists the chain,
// and returns. Grounded on network/network.go's CloseDB, which wires
// vrecan/death the same way: wait for the signal, then run a cleanup
// function before the process exits.
func (n *Node) Run() error {
	n.server = &http.Server{Addr: n.addr, Handler: n.router()}

	serverErr := make(chan error, 1)
	go func() {
		n.log.WithField("addr", n.addr).Info("starting http server")
		if err := n.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stopMining := make(chan struct{})
	miningDone := make(chan struct{})
	go n.miningLoop(stopMining, miningDone)

	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		n.log.Info("shutting down")
		close(stopMining)
		<-miningDone

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.server.Shutdown(ctx); err != nil {
			n.log.WithError(err).Warn("http server shutdown")
		}

		n.mu.Lock()
		defer n.mu.Unlock()
		if err := store.Save(n.path, n.chain); err != nil {
			n.log.WithError(err).Error("persist chain on shutdown")
		}
	})
	return nil
}

// miningLoop waits for either a ready signal or miningInterval to elapse,
// then attempts to mine and append one block. It exits when stop is closed.
func (n *Node) miningLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(miningInterval)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-n.ready:
		case <-timer.C:
		}
		n.attemptMine()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(miningInterval)
	}
}

// attemptMine takes the single lock, tries to mine a block, and on success
// appends it to the chain.
func (n *Node) attemptMine() {
	n.mu.Lock()
	defer n.mu.Unlock()

	block, err := miner.Mine(n.chain, n.miner)
	if err != nil {
		n.log.WithError(err).Debug("mining attempt did not produce a block")
		return
	}
	if err := n.chain.AddBlock(block); err != nil {
		n.log.WithError(err).Error("mined block rejected by chain")
		return
	}
	n.log.WithField("hash", block.Hash.String()).Info("appended mined block")
}
