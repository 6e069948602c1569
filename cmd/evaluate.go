package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/papapumpkin/caldera/internal/archive"
	"github.com/papapumpkin/caldera/internal/indicator"
	"github.com/papapumpkin/caldera/internal/supply"
	"github.com/papapumpkin/caldera/internal/telemetry"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <case.toml>",
	Short: "Sample capacity configurations of a case's structure",
	Long: `Builds the structure of a case, evaluates the full-capacity configuration
followed by random ones, and prints the trials no other trial beats on every
objective.

With --memory, good configurations are kept in a SQLite archive under the
case name and reused to start later runs of similar demand.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().Int("trials", 0, "number of trials (default from config)")
	evaluateCmd.Flags().Uint64("seed", 0, "random seed; 0 picks one")
	evaluateCmd.Flags().String("memory", "", "SQLite archive for warm-start memory (default from config)")
	evaluateCmd.Flags().StringSlice("objectives", nil, "objectives to report (default from case, then config)")
	evaluateCmd.Flags().Bool("progress", true, "show a progress bar")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.close()

	trials, _ := cmd.Flags().GetInt("trials")
	if trials <= 0 {
		trials = sess.cfg.Search.Trials
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	if seed == 0 {
		seed = sess.cfg.Search.Seed
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	memoryPath, _ := cmd.Flags().GetString("memory")
	if memoryPath == "" {
		memoryPath = sess.cfg.Archive
	}
	showProgress, _ := cmd.Flags().GetBool("progress")

	c, db, err := sess.loadCase(args[0])
	if err != nil {
		return err
	}
	names, _ := cmd.Flags().GetStringSlice("objectives")
	if len(names) == 0 {
		names = c.Objectives
	}
	if len(names) == 0 {
		names = sess.cfg.Search.Objectives
	}
	objectives, err := supply.ParseObjectives(names)
	if err != nil {
		return err
	}

	st, err := sess.build(c, db)
	if err != nil {
		return err
	}
	demand := st.Demand()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var store *archive.Store
	var memory *indicator.Memory
	if memoryPath != "" {
		if store, err = archive.Open(ctx, memoryPath); err != nil {
			return err
		}
		defer store.Close()
		if memory, err = sess.recall(ctx, store, c.Name, demand.Max(), rng); err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	sess.printer.Info(fmt.Sprintf("run %s: %d trials, seed %d", runID, trials, seed))
	_ = sess.events.Record(telemetry.KindEvaluateStart, runID, st.ID(), map[string]any{"case": c.Name, "trials": trials, "seed": seed})

	var bar *pb.ProgressBar
	if showProgress {
		bar = pb.New(trials)
		bar.Output = cmd.ErrOrStderr()
		bar.Start()
	}
	front, err := supply.Sample(ctx, st, demand, supply.SampleOptions{
		Trials:     trials,
		Objectives: objectives,
		Rand:       rng,
		Tolerance:  sess.cfg.Search.Tolerance,
		Memory:     memory,
		OnTrial: func(t supply.Trial, err error) {
			if bar != nil {
				bar.Increment()
			}
			if err != nil {
				_ = sess.events.Record(telemetry.KindTrialRejected, runID, st.ID(), map[string]any{"trial": t.Index, "error": err.Error()})
				if sess.cfg.Verbose {
					sess.printer.TrialRejected(t.Index, err)
				}
				return
			}
			_ = sess.events.Record(telemetry.KindTrialDone, runID, st.ID(), map[string]any{"trial": t.Index, "vector": t.Vector.Key(), "fitness": t.Fitness})
		},
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	sess.printer.Front(front, objectives)
	_ = sess.events.Record(telemetry.KindEvaluateDone, runID, st.ID(), map[string]any{"front": len(front)})

	if store == nil {
		return nil
	}
	// An interrupted run still saves what it found.
	saveCtx := context.WithoutCancel(ctx)
	if err := store.SaveMemory(saveCtx, c.Name, memory); err != nil {
		return err
	}
	return store.RecordRun(saveCtx, archive.Run{
		ID:        runID,
		Case:      c.Name,
		Structure: structureKey(front),
		Trials:    trials,
		Front:     len(front),
		CreatedAt: time.Now(),
	})
}

// recall loads the case's memory, or starts an empty one when none is stored
// or the stored one cannot bracket this demand.
func (s *session) recall(ctx context.Context, store *archive.Store, name string, peak float64, rng *rand.Rand) (*indicator.Memory, error) {
	m, err := store.LoadMemory(ctx, name, rng)
	switch {
	case err == nil && peak <= m.MaxDemand():
		s.printer.Info(fmt.Sprintf("memory %q: %d remembered configuration(s)", name, m.Len()))
		return m, nil
	case err != nil && !errors.Is(err, archive.ErrNotFound):
		return nil, err
	}
	// Brackets span twice the current peak so similar cases share a memory.
	return indicator.NewMemory(2*peak, s.cfg.Search.Brackets, rng)
}

func structureKey(front []supply.Trial) string {
	if len(front) == 0 {
		return ""
	}
	return front[0].Vector.StructureKey()
}
