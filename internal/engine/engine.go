// Package engine wires the registrar's components together into the
// single-instance lifecycle described in spec.md §4.1: one engine per
// configDir, guarded by the lockfile, running the pipeline worker until
// Shutdown is called. It corresponds to registrar.py's
// get_registrar_state/set_registrar_state/registrar_shutdown trio, replacing
// the module-level globals with an explicit singleton guarded by a mutex.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"synnergy-registrar/internal/atlas"
	"synnergy-registrar/internal/chainadapter"
	"synnergy-registrar/internal/config"
	"synnergy-registrar/internal/issuer"
	"synnergy-registrar/internal/keys"
	"synnergy-registrar/internal/lockfile"
	"synnergy-registrar/internal/queue"
	"synnergy-registrar/internal/replicator"
	"synnergy-registrar/internal/storage"
	"synnergy-registrar/internal/walletcache"
	"synnergy-registrar/internal/worker"
)

// ErrAlreadyRunning is returned by Initialize when an engine instance is
// already active in this process.
var ErrAlreadyRunning = errors.New("engine: registrar already running")

// ErrNotRunning is returned by operations that require an active engine.
var ErrNotRunning = errors.New("engine: registrar not running")

// Options configures atlas peer discovery and the chain adapter endpoint;
// everything else comes from the config file at configPath.
type Options struct {
	ChainEndpoint string
	AtlasListen   string
	AtlasBootstrap []string
	AtlasTag      string
	SkipDefaultPeer bool
}

// Engine is one running registrar instance: queue, wallet cache, chain
// adapter, atlas node, issuer and pipeline worker, all scoped to a single
// config directory and protected by that directory's lockfile.
type Engine struct {
	Config        *config.Config
	Wallet        *walletcache.Cache
	Queue         *queue.Queue
	Issuer        *issuer.Issuer
	WorkerMetrics *worker.Metrics

	chain      *chainadapter.RPCClient
	atlasNode  *atlas.Node
	lock       *lockfile.Lock
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

var (
	mu      sync.Mutex
	current *Engine
)

// Initialize loads configPath, acquires the lockfile, wires every component
// and starts the pipeline worker. Only one Engine may be active per process
// (spec.md §4.1: "a second Initialize call while one is running fails").
func Initialize(configPath string, opts Options) (*Engine, error) {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return nil, ErrAlreadyRunning
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lockPath := lockfile.Path(cfg.ConfigDir(configPath))
	lock, err := lockfile.Acquire(lockPath)
	if err != nil {
		return nil, err
	}

	q, err := queue.Open(cfg.QueuePath, cfg.TxMinConfirmations, int64(cfg.PreorderConfirmWindow))
	if err != nil {
		lock.Release()
		return nil, err
	}

	dialCtx, cancelDial := context.WithTimeout(context.Background(), cfg.ChainTimeout())
	defer cancelDial()
	chain, err := chainadapter.Dial(dialCtx, opts.ChainEndpoint)
	if err != nil {
		q.Close()
		lock.Release()
		return nil, err
	}

	atlasNode, err := atlas.NewNode(atlas.Config{
		ListenAddr:      orDefault(opts.AtlasListen, "/ip4/0.0.0.0/tcp/6264"),
		BootstrapPeers:  opts.AtlasBootstrap,
		DiscoveryTag:    orDefault(opts.AtlasTag, "synnergy-registrar"),
		SkipDefaultPeer: opts.SkipDefaultPeer,
	})
	if err != nil {
		chain.Close()
		q.Close()
		lock.Release()
		return nil, err
	}

	diskDriver, err := storage.NewDiskDriver("disk", cfg.ConfigDir(configPath)+"/storage")
	if err != nil {
		atlasNode.Close()
		chain.Close()
		q.Close()
		lock.Release()
		return nil, err
	}
	router := storage.NewRouter(diskDriver)

	repl, err := replicator.New(atlasNode, chain, router, cfg.RequiredStorageDrivers())
	if err != nil {
		atlasNode.Close()
		chain.Close()
		q.Close()
		lock.Release()
		return nil, err
	}

	wallet := walletcache.New()
	iss := issuer.New(q, chain, wallet, cfg.DefaultMinPaymentConfs)
	w := worker.New(q, chain, iss, repl, wallet, cfg.PollIntervalDuration())

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		Config:        cfg,
		Wallet:        wallet,
		Queue:         q,
		Issuer:        iss,
		WorkerMetrics: w.Metrics(),
		chain:         chain,
		atlasNode:     atlasNode,
		lock:          lock,
		cancel:        cancel,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		w.Run(ctx)
	}()

	current = e
	logrus.WithField("queue_path", cfg.QueuePath).Info("registrar engine started")
	return e, nil
}

// Current returns the active engine, or ErrNotRunning.
func Current() (*Engine, error) {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil, ErrNotRunning
	}
	return current, nil
}

// Shutdown stops the pipeline worker, releases every resource and clears the
// wallet cache (spec.md §3: "cleared on engine shutdown"), then releases the
// lockfile so a subsequent Initialize can succeed.
func Shutdown() error {
	mu.Lock()
	e := current
	current = nil
	mu.Unlock()

	if e == nil {
		return ErrNotRunning
	}

	e.cancel()
	e.wg.Wait()

	e.Wallet.Clear()
	e.atlasNode.Close()
	e.chain.Close()
	err := e.Queue.Close()
	if relErr := e.lock.Release(); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

// SetWallet unlocks the active engine's wallet cache.
func SetWallet(paymentAddr string, paymentKey keys.KeyInfo, ownerAddr string, ownerKey keys.KeyInfo, dataAddr string, dataKey keys.KeyInfo) error {
	e, err := Current()
	if err != nil {
		return err
	}
	return e.Wallet.SetWallet(paymentAddr, paymentKey, ownerAddr, ownerKey, dataAddr, dataKey)
}

// State reports the number of queued rows per category (spec.md §6 "State
// endpoint"), used by both the CLI and the HTTP API.
func (e *Engine) State() (map[queue.Category]int, error) {
	out := make(map[queue.Category]int, len(queue.AllCategories))
	for _, c := range queue.AllCategories {
		rows, err := e.Queue.All(c)
		if err != nil {
			return nil, fmt.Errorf("engine: state: %w", err)
		}
		out[c] = len(rows)
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
