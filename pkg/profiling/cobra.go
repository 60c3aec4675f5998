package profiling

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/spf13/cobra"
)

// CobraProfiler wires CPU, heap, execution-trace and timing output to
// persistent flags on a root command.
type CobraProfiler struct {
	cpuPath   string
	memPath   string
	tracePath string
	timing    bool

	// stops finish the running collectors, in start order.
	stops []func(out io.Writer) error
}

func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{}
}

// AddFlags registers the flags and installs the hooks that run around every
// subcommand.
func (p *CobraProfiler) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&p.cpuPath, "cpu-profile", "", "Write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&p.memPath, "mem-profile", "", "Write a heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&p.tracePath, "trace", "", "Write an execution trace to file (go tool trace)")
	cmd.PersistentFlags().BoolVar(&p.timing, "timing", false, "Print a timing summary of preview phases on exit")
	cmd.PersistentPreRunE = p.PreRun
	cmd.PersistentPostRunE = p.PostRun
}

func (p *CobraProfiler) PreRun(cmd *cobra.Command, args []string) error {
	if p.timing {
		Enable()
	}
	if p.cpuPath != "" {
		if err := p.start(p.cpuPath, "CPU profile", pprof.StartCPUProfile, pprof.StopCPUProfile); err != nil {
			return err
		}
	}
	if p.tracePath != "" {
		if err := p.start(p.tracePath, "execution trace", trace.Start, trace.Stop); err != nil {
			p.finish(cmd.ErrOrStderr())
			return err
		}
	}
	return nil
}

func (p *CobraProfiler) start(path, what string, start func(io.Writer) error, stop func()) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", what, err)
	}
	if err := start(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start %s: %w", what, err)
	}
	p.stops = append(p.stops, func(out io.Writer) error {
		stop()
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s written to %s\n", what, path)
		return nil
	})
	return nil
}

func (p *CobraProfiler) finish(out io.Writer) error {
	var first error
	for _, stop := range p.stops {
		if err := stop(out); err != nil && first == nil {
			first = err
		}
	}
	p.stops = nil
	return first
}

// PostRun stops the collectors, writes the heap profile and prints timings.
func (p *CobraProfiler) PostRun(cmd *cobra.Command, args []string) error {
	out := cmd.ErrOrStderr()
	if err := p.finish(out); err != nil {
		return err
	}

	if p.memPath != "" {
		f, err := os.Create(p.memPath)
		if err != nil {
			return fmt.Errorf("could not create heap profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("could not write heap profile: %w", err)
		}
		fmt.Fprintf(out, "heap profile written to %s\n", p.memPath)
	}

	if p.timing {
		Summarize(out)
	}
	return nil
}
