package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/browser"
	"github.com/xkilldash9x/waypoint-cli/internal/executor"
	"github.com/xkilldash9x/waypoint-cli/internal/history"
	"github.com/xkilldash9x/waypoint-cli/internal/observability"
	"github.com/xkilldash9x/waypoint-cli/internal/planner"
	"github.com/xkilldash9x/waypoint-cli/internal/snapshot"
	"github.com/xkilldash9x/waypoint-cli/internal/store"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Executes a checkpointed browser plan",
		Long: `Executes a plan against a live browser page, capturing a screenshot and
metadata at every checkpoint. The plan comes either from a natural-language
instruction (-i), turned into a plan by the configured model, or from a plan
JSON file (-p).`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			instruction, _ := cmd.Flags().GetString("instruction")
			planFile, _ := cmd.Flags().GetString("plan")
			startURL, _ := cmd.Flags().GetString("url")

			if (instruction == "") == (planFile == "") {
				return fmt.Errorf("exactly one of --instruction and --plan is required")
			}
			if instruction != "" && startURL == "" {
				return fmt.Errorf("--url is required with --instruction")
			}

			runID := uuid.New().String()
			logger.Info("Starting run", zap.String("run_id", runID))

			rc, err := initializeRunComponents(ctx, logger, runID)
			if err != nil {
				if rc != nil {
					rc.Shutdown()
				}
				return fmt.Errorf("failed to initialize run components: %w", err)
			}
			defer rc.Shutdown()

			plan, err := loadPlan(ctx, rc, instruction, planFile, startURL)
			if err != nil {
				return err
			}

			if rc.History != nil {
				if err := rc.History.RecordStart(ctx, runID, instruction); err != nil {
					logger.Warn("Failed to record run in history", zap.Error(err))
				}
			}

			exec := executor.New(logger, cfg.Executor, rc.Session, rc.Planner, rc.Snapshotter, rc.Store, runID)
			res, runErr := exec.Run(ctx, plan)

			if rc.History != nil && res != nil {
				if err := rc.History.RecordResult(ctx, res); err != nil {
					logger.Warn("Failed to finalize run in history", zap.Error(err))
				}
			}

			if res != nil {
				out, _ := json.MarshalIndent(res, "", "  ")
				fmt.Println(string(out))
				fmt.Printf("\nArtifacts: %s\n", rc.Store.RunDir())
			}

			if runErr != nil {
				if errors.Is(runErr, context.Canceled) {
					logger.Warn("Run aborted by user signal", zap.String("run_id", runID))
					return fmt.Errorf("run aborted by user signal")
				}
				return runErr
			}
			return nil
		},
	}

	runCmd.Flags().StringP("instruction", "i", "", "Natural-language instruction to plan and execute.")
	runCmd.Flags().StringP("plan", "p", "", "Path to a plan JSON file to execute as-is.")
	runCmd.Flags().StringP("url", "u", "", "Starting URL, loaded before planning.")

	return runCmd
}

// runComponents holds initialized services for one run.
type runComponents struct {
	BrowserManager *browser.Manager
	Session        *browser.Session
	Planner        schemas.Planner
	Snapshotter    schemas.Snapshotter
	Store          *store.FileStore
	History        *history.Recorder

	closeHistory func()
}

// Shutdown gracefully closes all components.
func (rc *runComponents) Shutdown() {
	if rc.Session != nil {
		rc.Session.Close()
	}
	if rc.BrowserManager != nil {
		rc.BrowserManager.Shutdown()
	}
	if rc.closeHistory != nil {
		rc.closeHistory()
	}
}

// initializeRunComponents handles dependency injection for the run command.
func initializeRunComponents(ctx context.Context, logger *zap.Logger, runID string) (*runComponents, error) {
	rc := &runComponents{}

	fileStore, err := store.NewFileStore(logger, cfg.Storage.ArtifactsDir, runID)
	if err != nil {
		return rc, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	rc.Store = fileStore

	mgr, err := browser.NewManager(ctx, logger, cfg.Browser)
	if err != nil {
		return rc, fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	rc.BrowserManager = mgr

	session, err := mgr.NewSession(ctx)
	if err != nil {
		return rc, fmt.Errorf("failed to open browser session: %w", err)
	}
	rc.Session = session

	pl, err := planner.New(cfg.Planner, logger)
	if err != nil {
		return rc, fmt.Errorf("failed to initialize planner: %w", err)
	}
	rc.Planner = pl

	rc.Snapshotter = snapshot.NewSummarizer(logger, schemas.Viewport{
		Width:  cfg.Browser.ViewportWidth,
		Height: cfg.Browser.ViewportHeight,
	})

	if cfg.History.DSN != "" {
		rec, closeFn, err := history.Connect(ctx, logger, cfg.History.DSN)
		if err != nil {
			return rc, fmt.Errorf("failed to initialize run history: %w", err)
		}
		rc.History = rec
		rc.closeHistory = closeFn
		if err := rec.EnsureSchema(ctx); err != nil {
			return rc, err
		}
	}

	return rc, nil
}

// loadPlan produces the plan to execute, either by parsing the given file or
// by navigating to the start URL and asking the planner.
func loadPlan(ctx context.Context, rc *runComponents, instruction, planFile, startURL string) (*schemas.Plan, error) {
	logger := observability.GetLogger()

	if planFile != "" {
		raw, err := os.ReadFile(planFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read plan file: %w", err)
		}
		plan, err := schemas.ParsePlan(raw)
		if err != nil {
			return nil, fmt.Errorf("plan file %q: %w", planFile, err)
		}
		logger.Info("Plan loaded from file",
			zap.String("path", planFile),
			zap.Int("checkpoints", len(plan.Checkpoints)))
		return plan, nil
	}

	if err := rc.Session.Navigate(ctx, startURL); err != nil {
		return nil, fmt.Errorf("failed to load starting URL %q: %w", startURL, err)
	}
	snap, err := rc.Snapshotter.Capture(ctx, rc.Session)
	if err != nil {
		logger.Warn("Page snapshot failed, planning without one", zap.Error(err))
		snap = nil
	}
	return rc.Planner.GeneratePlan(ctx, instruction, snap)
}
