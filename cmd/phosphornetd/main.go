// Command phosphornetd is the network configuration daemon: it wires
// together the kernel event source, the interface registry, the link
// supervisor watcher, the deferred reload coordinator, and an HTTP
// surface, then runs until asked to stop.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"

	"github.com/paradise2017/phosphor-networkd/internal/audit"
	"github.com/paradise2017/phosphor-networkd/internal/config"
	"github.com/paradise2017/phosphor-networkd/internal/ethif"
	"github.com/paradise2017/phosphor-networkd/internal/httpapi"
	"github.com/paradise2017/phosphor-networkd/internal/ipcbus"
	"github.com/paradise2017/phosphor-networkd/internal/netlinkx"
	"github.com/paradise2017/phosphor-networkd/internal/registry"
	"github.com/paradise2017/phosphor-networkd/internal/reload"
	"github.com/paradise2017/phosphor-networkd/internal/supervisor"
)

const Version = "1.0.0"

func main() {
	flags := config.ParseFlags()

	db, err := sql.Open("sqlite3", flags.DBPath+"?_journal_mode=WAL&_busy_timeout=30000&cache=shared&_synchronous=FULL")
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := audit.EnsureSchema(db); err != nil {
		log.Fatalf("audit schema: %v", err)
	}
	if err := config.EnsureSchema(db); err != nil {
		log.Fatalf("config schema: %v", err)
	}

	auditKey, err := audit.LoadOrCreateAuditKey(flags.AuditKeyPath)
	if err != nil {
		log.Fatalf("audit key: %v", err)
	}
	auditLog := audit.NewBufferedLogger(db, 100, 5*time.Second, auditKey)
	auditLog.Start()
	defer auditLog.Stop()

	ignorePatterns, err := config.LoadIgnoreList(flags.IgnoreListFile)
	if err != nil {
		log.Printf("ignore list: %v", err)
	}
	ignoreStore := config.NewIgnoreListStore(db)
	persisted, err := ignoreStore.Load()
	if err != nil {
		log.Printf("ignore list overrides: %v", err)
	}
	ignorePatterns = append(ignorePatterns, persisted...)

	bus := ipcbus.NewHub()
	go bus.Run()

	loader := ethif.NewFileConfigLoader(flags.ConfigDir)
	writer := ethif.NewWriter(flags.NetworkDir)

	mgr := registry.New(loader, writer, bus, auditLog, ignorePatterns)

	supClient := supervisor.NewWebSocketClient(flags.SupervisorURL)
	watcher := supervisor.NewWatcher(supClient)

	coordinator := reload.NewCoordinator(supClient, auditLog)

	lldpHook := reload.LLDPPostHook(func() []string {
		names := make([]string, 0, len(mgr.Interfaces()))
		for name := range mgr.Interfaces() {
			names = append(names, name)
		}
		return names
	})

	// Hooks are one-shot, but every firing needs its configuration
	// written before the supervisor Reload RPC goes out and the LLDP
	// config refreshed after it, so this pre-hook re-registers itself
	// and arms the LLDP post-hook for the following firing.
	var writeConfigHook reload.Hook
	writeConfigHook = func(ctx context.Context) error {
		mgr.WriteToConfigurationFile()
		coordinator.AddPreHook(writeConfigHook)
		coordinator.AddPostHook(lldpHook)
		return nil
	}
	coordinator.AddPreHook(writeConfigHook)
	coordinator.AddPostHook(lldpHook)

	source := netlinkx.NewSource()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := source.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("netlinkx source stopped: %v", err)
		}
	}()

	adminStates := make(chan registry.AdminStateUpdate, 64)
	go watcher.Run(ctx, adminStates)

	go mgr.Run(ctx, source.Events(), source.Errors(), adminStates, coordinator)

	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	registryHandler := httpapi.NewRegistryHandler(mgr, coordinator, ignoreStore)
	router.HandleFunc("/health", registryHandler.Health).Methods("GET")
	router.HandleFunc("/api/interfaces", registryHandler.ListInterfaces).Methods("GET")
	router.HandleFunc("/api/interfaces/{name}", registryHandler.GetInterface).Methods("GET")
	router.HandleFunc("/api/vlans", registryHandler.CreateVLAN).Methods("POST")
	router.HandleFunc("/api/ignore-list", registryHandler.AddIgnorePattern).Methods("POST")
	router.HandleFunc("/api/reset", registryHandler.Reset).Methods("POST")

	srv := &http.Server{
		Addr:         flags.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("phosphornetd %s listening on %s", Version, flags.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if err := auditLog.Log(audit.Event{Action: "daemon_stop", Success: true}); err != nil {
		log.Printf("audit log daemon_stop: %v", err)
	}

	log.Println("phosphornetd stopped")
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}
