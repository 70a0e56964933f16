package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/tabcell/tabcell/cmd/common"
	ccommon "github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/internal/events"
	"github.com/tabcell/tabcell/internal/policy"
	"github.com/tabcell/tabcell/pkg/logger"
)

func daemon(ctx *cli.Context) error {
	l := logger.NewStandardLogger(log.Default())
	defer l.Close()

	tier := policy.ParseTier(os.Getenv(ccommon.TierEnv))
	c, err := initDaemonComponents(l, tier)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "init", err)
		return nil
	}
	defer c.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Startup restoration/cleanup runs concurrently with the servers so
	// the control socket answers while tabs are still settling.
	go func() {
		if err := c.Machine.Run(runCtx); err != nil {
			l.Error("restoration: %v", err)
		}
	}()

	// Browser-facing HTTP surface, localhost only.
	httpAddr := fmt.Sprintf("localhost:%d", envPort(ccommon.HTTPPortEnv, ccommon.DefaultTCPPort+1))
	httpSrv := &http.Server{Addr: httpAddr, Handler: browserMux(c)}
	go func() {
		<-runCtx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutCtx)
	}()
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("browser endpoint: %v", err)
		}
	}()

	// Native-messaging transport for hosts that spawn the daemon directly
	// from the browser extension manifest.
	if ctx.Bool("stdio") {
		go func() {
			host := events.NewStdioHost(l, c.Hub, os.Stdin, os.Stdout)
			if err := host.Run(); err != nil {
				l.Error("native messaging host: %v", err)
			}
			stop()
		}()
	}

	// Periodic sweep of long-inactive orphaned sessions.
	go func() {
		t := time.NewTicker(DEF_SWEEP_INTERVAL)
		defer t.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-t.C:
				if n := c.Machine.SweepOnce(runCtx, now); n > 0 {
					l.Info("swept %d inactive sessions", n)
				}
			}
		}
	}()

	l.Info("daemon listening (control=%s, browser=%s)", socketDescription(), httpAddr)
	return c.Server.Start(runCtx)
}

func socketDescription() string {
	if p := os.Getenv(ccommon.SocketPathEnv); p != "" {
		return p
	}
	return "tabcell.sock"
}
