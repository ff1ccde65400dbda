package read

import (
	"fmt"
	"io"
	"os"
	"time"

	"obdkit/internal/config"
	"obdkit/internal/monitor"
	"obdkit/internal/obd"
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
	pids, err := config.ParsePIDs(args)
	if err != nil {
		log.Fatal("invalid PID", zap.Error(err))
	}
	count, _ := cmd.Flags().GetInt("count")

	s, err := session.Dial(cfg)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer s.Close()

	for i := 0; count == 0 || i < count; i++ {
		if i > 0 {
			time.Sleep(cfg.Interval)
		}
		if err := readOnce(os.Stdout, s.Engine, pids); err != nil {
			log.Error("read failed", zap.Error(err))
		}
	}
}

func readOnce(w io.Writer, e *obd.Engine, pids []byte) error {
	readings, _ := monitor.Read(e, pids)
	got := make(map[byte]monitor.Reading, len(readings))
	for _, r := range readings {
		got[r.PID] = r
	}

	failed := 0
	for _, pid := range pids {
		r, ok := got[pid]
		if !ok {
			fmt.Fprintf(w, "%02X %s: no data\n", pid, obd.Lookup(pid).Name)
			failed++
			continue
		}
		if r.Unit == "" {
			fmt.Fprintf(w, "%02X %s: %s\n", pid, r.Name, r.Text())
			continue
		}
		fmt.Fprintf(w, "%02X %s: %s %s\n", pid, r.Name, r.Text(), r.Unit)
	}
	if failed == len(pids) {
		return obd.ErrNoResponse
	}
	return nil
}
