package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/caldera/internal/database"
	"github.com/papapumpkin/caldera/internal/fault"
	"github.com/papapumpkin/caldera/internal/flow"
	"github.com/papapumpkin/caldera/internal/scenario"
	"github.com/papapumpkin/caldera/internal/structure"
	"github.com/papapumpkin/caldera/internal/telemetry"
)

var buildCmd = &cobra.Command{
	Use:   "build <case.toml>",
	Short: "Build the supply-system structure of a case",
	Long: `Builds the primary, secondary and tertiary supply components for the
demand of a case file and prints the frozen structure.

With --watch, the database directory is watched and the structure rebuilt
whenever one of its tables changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().Bool("watch", false, "rebuild when database tables change")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")

	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.close()

	c, db, err := sess.loadCase(args[0])
	if err != nil {
		return err
	}
	if _, err := sess.build(c, db); err != nil && !watch {
		return err
	}
	if !watch {
		return nil
	}

	opts, err := sess.registryOptions()
	if err != nil {
		return err
	}
	w, err := database.NewWatcher(c.DatabaseDir(sess.cfg.Database), opts...)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sess.rebuildOnReload(ctx, c, w.Reloads)
}

func (s *session) rebuildOnReload(ctx context.Context, c *scenario.Case, reloads <-chan database.Reload) error {
	s.printer.Info("watching " + c.DatabaseDir(s.cfg.Database) + " for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-reloads:
			if !ok {
				return nil
			}
			_ = s.events.Record(telemetry.KindDatabaseReload, "", "", map[string]any{"files": r.Files, "ok": r.Err == nil})
			s.printer.Reload(r)
			if r.Err != nil {
				continue
			}
			// Failures are printed; the watch goes on.
			_, _ = s.build(c, r.Database)
		}
	}
}

// build builds and prints the structure of a case.
func (s *session) build(c *scenario.Case, db *database.Database) (*structure.Structure, error) {
	in, err := c.Inputs(db.Catalog)
	if err != nil {
		return nil, err
	}
	st, err := structure.New(in)
	if err != nil {
		return nil, err
	}
	_ = s.events.Record(telemetry.KindBuildStart, "", st.ID(), map[string]any{"case": c.Name, "peak": in.Demand.Max()})
	if err := st.Build(); err != nil {
		_ = s.events.Record(telemetry.KindBuildFailed, "", st.ID(), map[string]any{"error": err.Error(), "carriers": fault.Carriers(err)})
		s.printer.BuildFailed(err, fault.Carriers(err))
		return nil, err
	}
	_ = s.events.Record(telemetry.KindBuildDone, "", st.ID(), buildSummary(st))
	s.printer.Structure(st)
	if s.cfg.Verbose {
		if err := s.printer.Dependencies(st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func buildSummary(st *structure.Structure) map[string]any {
	out := make(map[string]any)
	for _, p := range flow.SupplyCategories() {
		var codes []string
		for _, m := range st.Members(p) {
			codes = append(codes, m.Component.Code())
		}
		out[string(p)] = codes
	}
	out["potentials"] = st.UsedPotentials()
	return out
}
