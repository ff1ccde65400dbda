package root

import (
	"context"
	"fmt"
	"io"
	"os"

	"obdkit/internal/config"
	"obdkit/internal/displayer"
	"obdkit/internal/monitor"
	"obdkit/internal/session"
	"obdkit/pkg/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func Run(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	pids, err := cfg.PIDList()
	if err != nil {
		log.Fatal("invalid PID list", zap.Error(err))
	}

	s, err := session.Open(cfg)
	if err != nil {
		log.Fatal("failed to open adapter", zap.Error(err))
	}
	defer s.Close()

	if cfg.NoTUI {
		if err := s.Connect(); err != nil {
			log.Fatal("failed to connect", zap.Error(err))
		}
		printSummary(os.Stdout, s, pids)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Simulate(ctx)

	m := monitor.New(s.Engine, monitor.Config{
		PIDs:     pids,
		Protocol: s.Protocol(),
		Interval: cfg.Interval,
	})
	d := displayer.New(m, cfg.Interval)
	if err := d.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func printSummary(w io.Writer, s *session.Session, pids []byte) {
	e := s.Engine
	fmt.Fprintf(w, "Adapter version: %d\n", e.Version())
	fmt.Fprintf(w, "Protocol: %s\n", s.Protocol())

	readings, _ := monitor.Read(e, pids)
	for _, r := range readings {
		fmt.Fprintf(w, "%s: %s %s\n", r.Name, r.Text(), r.Unit)
	}
	if len(readings) < len(pids) {
		fmt.Fprintf(w, "%d of %d PIDs did not answer\n", len(pids)-len(readings), len(pids))
	}

	codes, err := e.ReadDTC()
	if err != nil {
		log.Error("failed to get error codes", zap.Error(err))
		return
	}
	fmt.Fprintln(w, "Current DTC Error Codes:")
	if len(codes) == 0 {
		fmt.Fprintln(w, "No error codes.")
		return
	}
	for _, code := range codes {
		fmt.Fprintf(w, "- %s: %s\n", code.Code, code.Description)
	}
}
