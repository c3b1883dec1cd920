// fleetwatch-stream follows the target log and prints formatted telemetry
// lines to stdout, the way a dashboard's incoming-log pane would show them.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nxadm/tail"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/pkg/models"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	file := flag.String("file", "", "Target log to follow (overrides config)")
	fromStart := flag.Bool("from-start", false, "Print existing lines before following")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	target := cfg.Replay.TargetFile
	if *file != "" {
		target = *file
	}

	tailConfig := tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      true, // Use polling for better compatibility
	}
	if !*fromStart {
		tailConfig.Location = &tail.SeekInfo{Offset: 0, Whence: os.SEEK_END}
	}

	t, err := tail.TailFile(target, tailConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to follow %s: %v\n", target, err)
		os.Exit(1)
	}
	defer t.Cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			t.Stop()
			return

		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				fmt.Fprintf(os.Stderr, "read error: %v\n", line.Err)
				continue
			}
			if rec, err := models.ParseRecord(line.Text); err == nil {
				fmt.Println(rec.Display())
			} else {
				fmt.Println(line.Text)
			}
		}
	}
}
