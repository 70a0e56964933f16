package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/internal/api"
	"github.com/tabcell/tabcell/internal/events"
	"github.com/tabcell/tabcell/internal/intercept"
	"github.com/tabcell/tabcell/internal/policy"
	"github.com/tabcell/tabcell/internal/restore"
	"github.com/tabcell/tabcell/internal/server"
	"github.com/tabcell/tabcell/internal/shim"
	"github.com/tabcell/tabcell/internal/storage"
	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// DaemonComponents holds all initialized daemon components so console
// mode and tests share one initialization and cleanup path.
type DaemonComponents struct {
	Table   *cellib.SessionTable
	Binder  *cellib.Binder
	Store   *storage.Manager
	Gate    *policy.Gate
	Icept   *intercept.Interceptor
	KV      *shim.KVStore
	Tabs    *events.TabRegistry
	Hub     *events.Hub
	Machine *restore.Machine
	Api     *api.Api
	Server  *server.Server
	RPC     *server.RPCServer
	WS      *events.WSHandler

	log logger.Logger
}

// Close releases daemon resources in reverse order of initialization.
func (c *DaemonComponents) Close() {
	if c.log != nil {
		c.log.Info("shutting down daemon")
	}
	if c.RPC != nil {
		c.RPC.Close()
	}
	if c.Server != nil {
		_ = c.Server.Shutdown()
	}
	if c.Api != nil {
		// closes the storage manager, flushing pending writes
		_ = c.Api.Close()
	}
	if c.Gate != nil {
		c.Gate.Close()
	}
	if c.log != nil {
		c.log.Info("daemon stopped")
	}
}

func dataDir() (string, error) {
	if dir := os.Getenv(common.DataDirEnv); dir != "" {
		return dir, os.MkdirAll(dir, 0o700)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "tabcell")
	return dir, os.MkdirAll(dir, 0o700)
}

func envPort(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			return p
		}
	}
	return def
}

// initDaemonComponents wires the whole engine: session table, binder,
// the three storage tiers, policy gate, interceptor, event hub and the
// restoration machine. A failed sealer or sqlite tier degrades service
// rather than aborting startup; the health endpoint reports it.
func initDaemonComponents(log logger.Logger, tier policy.Tier) (*DaemonComponents, error) {
	dir, err := dataDir()
	if err != nil {
		log.Error("data directory unavailable: %v", err)
		return nil, err
	}

	table := cellib.NewSessionTable()
	binder := cellib.NewBinder(table)

	// The gate is created before the machine it notifies; the closure
	// binds late so the cycle resolves at wiring time.
	var machine *restore.Machine
	gate := policy.NewGate(log, tier, policy.DefaultDebounce, func(oldT, newT policy.Tier) {
		if machine != nil {
			machine.OnTierChanged(oldT, newT)
		}
	})
	// The auto-restore preference survives restarts; without the durable
	// seed the machine could never take its restoring branch after one.
	gate.UsePrefStore(policy.NewPrefStore(afero.NewOsFs(), filepath.Join(dir, "autorestore")))

	var sealer *storage.Sealer
	if policy.LimitsFor(tier).AllowEncryption {
		sealer, err = storage.NewSealer()
		if err != nil {
			log.Warning("keyring unavailable, persisting unsealed: %v", err)
			sealer = nil
		}
	}

	fileTier, err := storage.NewFileTier(afero.NewOsFs(), filepath.Join(dir, "sessions.cell"))
	if err != nil {
		log.Error("file tier initialization failed: %v", err)
		gate.Close()
		return nil, err
	}
	sqlTier := storage.NewSQLiteTier(log, filepath.Join(dir, "sessions.db"), sealer)

	store := storage.NewManager(log, table, DEF_WRITE_DEBOUNCE,
		storage.NewMemoryTier(), fileTier, sqlTier)

	icept := intercept.New(log, table, binder, store)
	kv := shim.NewKVStore()
	tabs := events.NewTabRegistry()
	hub := events.NewHub(log, table, binder, icept, tabs, gate, store, store)
	machine = restore.NewMachine(log, table, binder, gate, store, store, store, tabs, DEF_TAB_WAIT)

	a, err := api.NewApi(log, table, binder, store, gate, icept, hub)
	if err != nil {
		log.Error("api initialization failed: %v", err)
		_ = store.Close()
		gate.Close()
		return nil, err
	}

	serv := server.NewServer(log, envPort(common.TCPPortEnv, common.DefaultTCPPort))
	a.RegisterHandlers(serv)

	rpc := server.NewRPCServer(&server.RPCConfig{
		Secret:  os.Getenv(common.RPCSecretEnv),
		Version: currentBuildArgs.Version,
	}, serv, log)

	return &DaemonComponents{
		Table:   table,
		Binder:  binder,
		Store:   store,
		Gate:    gate,
		Icept:   icept,
		KV:      kv,
		Tabs:    tabs,
		Hub:     hub,
		Machine: machine,
		Api:     a,
		Server:  serv,
		RPC:     rpc,
		WS:      events.NewWSHandler(log, hub),
		log:     log,
	}, nil
}

// browserMux assembles the localhost HTTP surface used by the browser
// companion: the event channel, the JSON-RPC bridge and the shim source.
func browserMux(c *DaemonComponents) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/events", c.WS)
	mux.Handle("/jsonrpc", c.RPC.Handler())
	mux.Handle("/jsonrpc/ws", c.RPC.Handler())
	mux.HandleFunc("/shim", func(w http.ResponseWriter, r *http.Request) {
		tab, err := strconv.ParseInt(r.URL.Query().Get("tab"), 10, 64)
		if err != nil {
			http.Error(w, "missing or invalid tab parameter", http.StatusBadRequest)
			return
		}
		pageURL := r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, shim.Prelude(tab, pageURL))
	})
	return mux
}
