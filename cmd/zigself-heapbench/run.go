package main

import (
	"fmt"
	"io"
	"os"

	"fortio.org/safecast"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/tusharsadhwani/zigself/internal/heap"
	"github.com/tusharsadhwani/zigself/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one or more heap benchmark scenarios",
	RunE:  runExecution,
}

func init() {
	runCmd.Flags().String("scenario", "mixed", "scenario to run (churn|chain|mixed)")
	runCmd.Flags().Int("n", 2000, "number of allocations to perform")
	runCmd.Flags().String("config", "", "path to a zigself.toml heap config (defaults built in)")
	runCmd.Flags().String("ui", "auto", "live view (auto|on|off)")
	runCmd.Flags().Bool("all", false, "run every scenario concurrently, each against its own heap")
	runCmd.Flags().Int64("seed", 1, "seed for scenarios that use randomness")
}

func runExecution(cmd *cobra.Command, args []string) error {
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
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	seed, err := cmd.Flags().GetInt64("seed")
	if err != nil {
		return err
	}

	cfg, err := loadHeapConfig(configPath)
	if err != nil {
		return err
	}
	if err := checkRequestedVolume(n); err != nil {
		return err
	}

	if all {
		return runAllScenarios(cmd, cfg, n, seed)
	}

	sc, err := findScenario(scenarioName)
	if err != nil {
		return err
	}

	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	if shouldUseTUI(mode) {
		return runScenarioWithUI(sc, cfg, n, seed)
	}
	return runScenarioPlain(cmd, sc, cfg, n, seed)
}

// checkRequestedVolume rejects an --n that would overflow the uint32
// byte counters the heap itself uses, instead of letting the overflow
// surface later as a baffling allocation fault deep inside a scenario.
func checkRequestedVolume(n int) error {
	totalBytes := int64(n) * int64(smallObjectBytes)
	if _, err := safecast.Conv[uint32](totalBytes); err != nil {
		return fmt.Errorf("--n %d would overflow a uint32 byte budget: %w", n, err)
	}
	return nil
}

func loadHeapConfig(path string) (heap.Config, error) {
	if path == "" {
		return heap.DefaultConfig(), nil
	}
	return heap.LoadConfig(path)
}

// runAllScenarios runs every registered scenario concurrently, each
// against its own heap instance: a heap is not safe for concurrent use,
// but independent heaps obviously are, so this is the shape of
// concurrency that actually applies here.
func runAllScenarios(cmd *cobra.Command, cfg heap.Config, n int, seed int64) error {
	var g errgroup.Group
	results := make([]heap.Stats, len(scenarios))

	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			h := heap.New(cfg)
			sc.run(h, n, seed)
			h.Close()
			results[i] = h.Stats()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bold := color.New(color.Bold)
	for i, sc := range scenarios {
		bold.Fprintf(cmd.OutOrStdout(), "%s\n", sc.name)
		printStats(cmd.OutOrStdout(), results[i])
	}
	return nil
}

func runScenarioPlain(cmd *cobra.Command, sc scenario, cfg heap.Config, n int, seed int64) error {
	h := heap.New(cfg)
	sc.run(h, n, seed)
	h.Close()
	printStats(cmd.OutOrStdout(), h.Stats())
	return nil
}

// runScenarioWithUI runs the scenario on a dedicated goroutine that
// exclusively owns the heap, streaming collector events and periodic
// stats snapshots to the Bubble Tea program running on this goroutine.
func runScenarioWithUI(sc scenario, cfg heap.Config, n int, seed int64) error {
	events := make(chan heap.Event, 256)
	stats := make(chan heap.Stats, 32)

	go func() {
		h := heap.New(cfg)
		h.SetTracer(channelTracer{ch: events})
		const chunk = 25
		for done := 0; done < n; done += chunk {
			step := chunk
			if done+step > n {
				step = n - done
			}
			sc.run(h, step, seed+int64(done))
			select {
			case stats <- h.Stats():
			default:
			}
		}
		h.Close()
		select {
		case stats <- h.Stats():
		default:
		}
		close(events)
	}()

	model := ui.NewHeapViewModel(fmt.Sprintf("zigself-heapbench: %s", sc.name), []string{"eden", "from", "to", "old"}, events, stats)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, err := program.Run()
	return err
}

type channelTracer struct {
	ch chan heap.Event
}

func (t channelTracer) Trace(e heap.Event) {
	select {
	case t.ch <- e:
	default:
	}
}

func printStats(out io.Writer, s heap.Stats) {
	row := func(label string, sp heap.SpaceStats) {
		fmt.Fprintf(out, "  %-6s %8d/%8d bytes  remembered=%d finalize=%d tracked=%d\n",
			label, sp.UsedBytes, sp.CapacityBytes, sp.RememberedLen, sp.FinalizeLen, sp.TrackedLen)
	}
	row("eden", s.Eden)
	row("from", s.From)
	row("to", s.To)
	row("old", s.Old)
	fmt.Fprintf(out, "  scavenges=%d tenures=%d finalizer_runs=%d\n", s.ScavengeCount, s.TenureCount, s.FinalizerRuns)
}
