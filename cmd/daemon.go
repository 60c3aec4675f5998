package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/storyview/cli"
	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/internal/daemon/engine"
	"github.com/grovetools/storyview/internal/daemon/pidfile"
	"github.com/grovetools/storyview/internal/daemon/server"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/daemon"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/paths"
	"github.com/grovetools/storyview/pkg/selection"
	"github.com/grovetools/storyview/state"
	"github.com/grovetools/storyview/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewServeCmd returns the command that runs the preview daemon in the foreground.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the preview daemon",
		Long: `Loads the story index, renders the selected story and serves the preview
API until interrupted. Story modules, the index and storyview.yml are watched
and reloaded on change.

Examples:
  # Serve the first story in the catalog
  storyview serve --story '*'

  # Resume the last session's story, args and globals
  storyview serve --resume

  # Serve over TCP instead of the unix socket
  storyview serve --addr 127.0.0.1:6006`,
		RunE: runServe,
	}

	cmd.Flags().Bool("resume", false, "Start from the selection saved in the state file")
	cmd.Flags().String("story", "", "Story id, '*' for the first story, or Title::Name")
	cmd.Flags().String("view-mode", "", "View mode: story or docs")
	cmd.Flags().String("args", "", "Initial args as key:value;key:value")
	cmd.Flags().String("globals", "", "Initial globals as key:value;key:value")
	cmd.Flags().String("addr", "", "Listen on a TCP address instead of the unix socket")
	cmd.Flags().Bool("no-watch", false, "Do not reload sources on change")
	return cmd
}

// initialSpecifier picks the specifier from flags, then the state file.
// nil leaves the choice to the configuration.
func initialSpecifier(cmd *cobra.Command, cfg *config.Config) (*models.SelectionSpecifier, error) {
	if story, _ := cmd.Flags().GetString("story"); story != "" {
		q := url.Values{"id": {story}}
		for _, name := range []string{"view-mode", "args", "globals"} {
			if v, _ := cmd.Flags().GetString(name); v != "" {
				key := name
				if name == "view-mode" {
					key = "viewMode"
				}
				q.Set(key, v)
			}
		}
		return selection.SpecifierFromQuery(q), nil
	}

	if resume, _ := cmd.Flags().GetBool("resume"); resume && cfg.StateFile != "" {
		sess, err := state.Load(cfg.ResolvePath(cfg.StateFile))
		if err != nil {
			return nil, err
		}
		return sess.Specifier(), nil
	}
	return nil, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, "daemon")

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
		cfg.Server.Socket = ""
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		disabled := false
		cfg.Watch.Enabled = &disabled
	}
	spec, err := initialSpecifier(cmd, cfg)
	if err != nil {
		return err
	}

	// 1. Acquire Lock
	pidPath := paths.PidFile(cfg.Dir())
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	// 2. Setup Store and Engine
	eng := engine.New(store.New(), cfg, spec, logger)

	// 3. Setup Server with engine
	network, address := daemon.Endpoint(cfg)
	srv := server.New(logger)
	srv.SetEngine(eng)
	srv.SetRunningConfig(&daemon.RunningConfig{
		ConfigPath:   cfg.Path(),
		StoriesDir:   cfg.ResolvePath(cfg.StoriesDir),
		Index:        cfg.Index,
		Socket:       cfg.ResolvePath(cfg.Server.Socket),
		Addr:         cfg.Server.Addr,
		Watch:        cfg.WatchEnabled(),
		Debounce:     cfg.Debounce(),
		StoryStoreV7: cfg.StoryStoreV7(),
		Version:      version.GetInfo().Short(),
		StartedAt:    time.Now(),
	})

	// 4. Handle Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 5. Start Engine, then render the initial selection
	g.Go(func() error {
		eng.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := eng.Initialize(gctx); err != nil {
			// Shown on the error display; the daemon keeps serving so a fix can be hot-reloaded.
			logger.WithError(err).Error("Preview failed to initialize")
		}
		return nil
	})

	// 6. Serve until the context ends
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"pid": os.Getpid(), "network": network, "version": version.GetInfo().Short()}).Info("Starting daemon")
		var err error
		if network == "tcp" {
			err = srv.ListenAndServeTCP(address)
		} else {
			err = srv.ListenAndServe(address)
		}
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received stop signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
		return eng.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// NewStopCmd returns the command that stops a running daemon.
func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			pidPath := paths.PidFile(cfg.Dir())
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())

			running, _, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				pretty.InfoPretty("Daemon is not running")
				return nil
			}
			pid, err := pidfile.Stop(pidPath, timeout)
			if err != nil {
				return err
			}
			pretty.Success(fmt.Sprintf("Stopped daemon (PID %d)", pid))
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 5*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

// NewStatusCmd returns the command that reports the daemon and its display.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the current display",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			running, pid, err := pidfile.IsRunning(paths.PidFile(cfg.Dir()))
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if !running {
				if cli.GetOptions(cmd).JSONOutput {
					return writeJSON(cmd, map[string]interface{}{"running": false})
				}
				pretty.InfoPretty("Stopped")
				return nil
			}

			client, err := daemon.Connect(cfg, "reading daemon status")
			if err != nil {
				return err
			}
			defer client.Close()
			st, err := client.GetState(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd, map[string]interface{}{"running": true, "pid": pid, "state": st})
			}

			pretty.Success(fmt.Sprintf("Running (PID %d)", pid))
			pretty.Field("Address", client.Address())
			pretty.Field("Display", string(st.Display.Mode))
			if st.Display.Error != "" {
				pretty.Field("Error", st.Display.Error)
			}
			if st.Preview.MountedStoryID != "" {
				pretty.Phase(st.Preview.MountedStoryID, string(st.Preview.MountedPhase))
			}
			pretty.Field("Stories", st.Sources.Stories)
			if st.Sources.Error != "" {
				pretty.ErrorPretty("Sources failed to load", fmt.Errorf("%s", st.Sources.Error))
			}
			return nil
		},
	}
}
