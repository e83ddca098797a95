package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
		filter string
		file   string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print or follow the envwatch log file",
		Long: `Prints the last lines of today's log file. With --follow, new lines are
streamed until interrupted; the file is reopened when it is rotated.`,
		Example: `envwatch logs -n 100
envwatch logs -f --filter watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				s, err := loadSession(cmd, "logs")
				if err != nil {
					return err
				}
				path = logging.ConfigFrom(s.cfg).ResolveFilePath()
				if path == "" {
					return errors.New(errors.ErrCodeInvalidInput, "the log file sink is disabled (logging.file.disabled)")
				}
			}

			out := cmd.OutOrStdout()
			match := func(line string) bool {
				return filter == "" || strings.Contains(line, filter)
			}

			offset, err := printLastLines(out, path, lines, match)
			if err != nil && !(follow && os.IsNotExist(err)) {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if !follow {
				return nil
			}
			return followFile(cmd, out, path, offset, match)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show first")
	cmd.Flags().StringVar(&filter, "filter", "", "Only show lines containing this text")
	cmd.Flags().StringVar(&file, "file", "", "Log file to read (default: today's log)")
	return cmd
}

// printLastLines writes the last n matching lines of path and returns the
// offset reading stopped at.
func printLastLines(w io.Writer, path string, n int, match func(string) bool) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var (
		ring   = make([]string, 0, n)
		offset int64
	)
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if strings.HasSuffix(line, "\n") {
			offset += int64(len(line))
			line = strings.TrimSuffix(line, "\n")
			if match(line) && n > 0 {
				if len(ring) == n {
					ring = ring[1:]
				}
				ring = append(ring, line)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return offset, err
		}
	}
	for _, line := range ring {
		fmt.Fprintln(w, line)
	}
	return offset, nil
}

func followFile(cmd *cobra.Command, w io.Writer, path string, offset int64, match func(string) bool) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      true,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", path, err)
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s tail: %v\n", time.Now().Format("15:04:05"), line.Err)
				continue
			}
			if match(line.Text) {
				fmt.Fprintln(w, line.Text)
			}
		}
	}
}
