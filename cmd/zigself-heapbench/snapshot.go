package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tusharsadhwani/zigself/internal/heap"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture or inspect a heap snapshot",
}

var snapshotRunCmd = &cobra.Command{
	Use:   "run [flags] <out-file>",
	Short: "Run a scenario and write its final heap snapshot to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  snapshotRunExecution,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <snapshot-file>",
	Short: "Print a previously captured heap snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  snapshotShowExecution,
}

func init() {
	snapshotCmd.AddCommand(snapshotRunCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)

	snapshotRunCmd.Flags().String("scenario", "mixed", "scenario to run (churn|chain|mixed)")
	snapshotRunCmd.Flags().Int("n", 2000, "number of allocations to perform")
	snapshotRunCmd.Flags().String("config", "", "path to a zigself.toml heap config (defaults built in)")
	snapshotRunCmd.Flags().Int64("seed", 1, "seed for scenarios that use randomness")
}

func snapshotRunExecution(cmd *cobra.Command, args []string) error {
	scenarioName, err := cmd.Flags().GetString("scenario")
	if err != nil {
		return err
	}
	n, err := cmd.Flags().GetInt("n")
	if err != nil {
		return err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	seed, err := cmd.Flags().GetInt64("seed")
	if err != nil {
		return err
	}

	sc, err := findScenario(scenarioName)
	if err != nil {
		return err
	}
	cfg, err := loadHeapConfig(configPath)
	if err != nil {
		return err
	}

	h := heap.New(cfg)
	sc.run(h, n, seed)

	out, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer out.Close()

	if err := heap.WriteSnapshot(out, h.Snapshot()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote snapshot for scenario %q (n=%d) to %s\n", sc.name, n, args[0])
	return nil
}

func snapshotShowExecution(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer in.Close()

	snap, err := heap.ReadSnapshot(in)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "config: eden=%d from=%d to=%d old=%d debug=%t\n",
		snap.Config.EdenBytes, snap.Config.FromBytes, snap.Config.ToBytes, snap.Config.OldBytes, snap.Config.Debug)
	printStats(cmd.OutOrStdout(), snap.Stats)
	return nil
}
