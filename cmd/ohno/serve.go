package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/srstomp/ohno/internal/board"
	"github.com/srstomp/ohno/internal/config"
	"github.com/srstomp/ohno/internal/export"
	"github.com/srstomp/ohno/internal/mcp"
	"github.com/srstomp/ohno/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live kanban board, or speak MCP over stdio",
	Run: func(cmd *cobra.Command, args []string) {
		if mcpMode, _ := cmd.Flags().GetBool("mcp"); mcpMode {
			runMCP()
			return
		}
		runBoard()
	},
}

// runMCP runs the stdio MCP server until the client disconnects.
func runMCP() {
	store := openStore()
	defer store.Close()

	ctx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcp.NewServer(store, cfg.Actor, Version)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fail(exitGeneral, "%v", err)
	}
}

// runBoard serves kanban.html over HTTP and regenerates it whenever the
// database changes.
func runBoard() {
	dir := projectDir()
	store := openStore()
	defer store.Close()

	regen := func(ctx context.Context) error {
		snap, err := export.Build(ctx, store)
		if err != nil {
			return err
		}
		if err := board.WriteFile(snap, filepath.Join(dir, config.BoardFileName)); err != nil {
			return err
		}
		return snap.WriteFile(filepath.Join(dir, config.SnapshotFileName))
	}

	ctx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial render so the first page load is current.
	if err := regen(ctx); err != nil {
		fail(exitDatabase, "%v", err)
	}

	srv := watch.NewServer(dir, cfg.Addr())
	watcher := watch.NewWatcher(store.Path(), cfg.WatchInterval, regen)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := watcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	out.Infof("Serving board at http://%s (Ctrl-C to stop)", cfg.Addr())
	if err := g.Wait(); err != nil {
		fail(exitNetwork, "%v", err)
	}
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "run the MCP stdio server instead of the board")
}
