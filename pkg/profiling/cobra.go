package profiling

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

// Hook wires the --profile flag of root into its lifecycle. With --profile
// the timer is enabled before the command runs and the report goes to the
// command's stderr afterwards. The hidden --cpu-profile flag additionally
// writes a pprof CPU profile.
type Hook struct {
	cpuProfile string
	cpuFile    *os.File
}

// Install adds the hook to root, keeping existing persistent hooks.
func Install(root *cobra.Command) *Hook {
	h := &Hook{}
	root.PersistentFlags().StringVar(&h.cpuProfile, "cpu-profile", "", "Write a CPU profile to file")
	_ = root.PersistentFlags().MarkHidden("cpu-profile")

	prevPre := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := h.before(cmd); err != nil {
			return err
		}
		if prevPre != nil {
			return prevPre(cmd, args)
		}
		return nil
	}

	prevPost := root.PersistentPostRunE
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if prevPost != nil {
			err = prevPost(cmd, args)
		}
		h.after(cmd)
		return err
	}
	return h
}

func (h *Hook) before(cmd *cobra.Command) error {
	if on, _ := cmd.Flags().GetBool("profile"); on {
		Enable()
	}
	if h.cpuProfile == "" {
		return nil
	}
	f, err := os.Create(h.cpuProfile)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	h.cpuFile = f
	return nil
}

func (h *Hook) after(cmd *cobra.Command) {
	if h.cpuFile != nil {
		pprof.StopCPUProfile()
		h.cpuFile.Close()
		h.cpuFile = nil
		fmt.Fprintf(cmd.ErrOrStderr(), "CPU profile written to %s\n", h.cpuProfile)
	}
	Report(cmd.ErrOrStderr())
}
