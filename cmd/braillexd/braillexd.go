// Command braillexd binds a BRAILLEX display and runs it as a service:
// key gestures are recorded to the event log, and a local HTTP listener
// serves the JSON API plus the admin debug surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/braillekit/braillex/internal/api"
	"github.com/braillekit/braillex/internal/braillex"
	"github.com/braillekit/braillex/internal/config"
	"github.com/braillekit/braillex/internal/eventlog"
	"github.com/braillekit/braillex/internal/monitoring"
	"github.com/braillekit/braillex/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run against an emulated display instead of real hardware")
	listen      = flag.String("listen", "", "Listen address (default localhost:8980)")
	port        = flag.String("port", "", "Display to bind: auto, serial:PATH, hid:PATH, usb, or a device path (ignored in dev mode)")
	dbPath      = flag.String("db", "", "Event log database path (default braillex.db)")
	configPath  = flag.String("config", "", "Path to a JSON config file")
	debugMode   = flag.Bool("debug", false, "Log protocol-level diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// overrideFromFlags lays explicitly set flags over the file config. A flag
// left at its default defers to the file, which defers to the compiled-in
// defaults.
func overrideFromFlags(cfg *config.Config, set map[string]bool) *config.Config {
	if set["port"] {
		cfg.Port = port
	}
	if set["listen"] {
		cfg.Listen = listen
	}
	if set["db"] {
		cfg.DBPath = dbPath
	}
	if set["debug"] {
		cfg.Debug = debugMode
	}
	return cfg
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("braillexd %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	cfg = overrideFromFlags(cfg, set)

	monitoring.SetDebug(cfg.GetDebug())

	// Key events arrive on the transport reader goroutine; the buffer
	// decouples it from the database.
	events := make(chan braillex.KeyEvent, 64)
	opts := []braillex.Option{
		braillex.WithIOTimeout(cfg.GetIOTimeout()),
		braillex.WithProbeWait(cfg.GetProbeWait()),
		braillex.WithResponseWait(cfg.GetResponseWait()),
		braillex.WithSettleTime(cfg.GetSettleTime()),
		braillex.WithRepeatInterval(cfg.GetRepeatInterval()),
		braillex.WithKeyHandler(func(ev braillex.KeyEvent) {
			select {
			case events <- ev:
			default:
				monitoring.Logf("braillexd: event buffer full, dropping %v", ev.Keys)
			}
		}),
	}

	portSpec := cfg.GetPort()
	var mock *braillex.MockDevice
	if *devMode {
		mock = braillex.NewMockDevice([2]byte{0x36, 0x31}) // emulated EL 80c
		opts = append(opts, braillex.WithEnumerator(mock.Candidates), braillex.WithOpener(mock.Open))
		portSpec = "auto"
	}

	driver, err := braillex.New(portSpec, opts...)
	if err != nil {
		log.Fatalf("failed to bind display: %v", err)
	}
	model, _ := driver.Model()
	log.Printf("bound %s on %s", model, driver.PortName())

	store, err := eventlog.Open(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to open event log: %v", err)
	}
	defer store.Close()

	sessionID, err := store.StartSession(model, driver.PortName())
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	log.Printf("recording to %s as %s", cfg.GetDBPath(), sessionID)

	// One wait group covers the recorder, the dev traffic loop, and the
	// HTTP server.
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case ev := <-events:
				if err := store.RecordKeyEvent(sessionID, ev); err != nil {
					monitoring.Logf("braillexd: recording key event: %v", err)
				}
			case <-ctx.Done():
				log.Printf("recorder routine terminated")
				return
			}
		}
	}()

	if mock != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runDevTraffic(ctx, driver, mock)
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(driver, store, cfg, sessionID).ServeMux()
		store.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on http://%s", cfg.GetListen())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if err := driver.Terminate(); err != nil {
		log.Printf("terminate error: %v", err)
	}
	if err := store.EndSession(sessionID); err != nil {
		log.Printf("end session error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// runDevTraffic keeps an emulated display busy: a sweeping cell pattern
// plus a periodic key gesture, so every daemon surface carries data
// without hardware attached.
func runDevTraffic(ctx context.Context, d *braillex.Driver, mock *braillex.MockDevice) {
	m, ok := d.Model()
	if !ok {
		return
	}

	gestures := [][]int{{3}, {5}, {11}, {3, 11}, {32}}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cells := make([]byte, m.Cells)
		cells[tick%m.Cells] = 0xFF
		if err := d.Refresh(cells); err != nil {
			monitoring.Debugf("braillexd: dev refresh: %v", err)
		}

		if tick%5 == 4 {
			g := gestures[(tick/5)%len(gestures)]
			mock.PressKeys(g...)
			mock.ReleaseKeys()
		}
	}
}
