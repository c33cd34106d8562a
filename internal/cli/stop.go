package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running jiradash instance to drain and exit",
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(cfg.PIDFile())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No running jiradash instance found.")
			return nil
		}
		return fmt.Errorf("failed to read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("malformed pid file %s: %w", cfg.PIDFile(), err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Stale pid file from an unclean exit
		os.Remove(cfg.PIDFile())
		fmt.Printf("No running instance with pid %d; removed stale pid file.\n", pid)
		return nil
	}

	fmt.Printf("Sent stop signal to jiradash (pid %d).\n", pid)
	return nil
}
