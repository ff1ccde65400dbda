package sleep

import (
	"fmt"
	"io"
	"os"

	"obdkit/internal/config"
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
	s, err := session.Open(cfg)
	if err != nil {
		log.Fatal("failed to open adapter", zap.Error(err))
	}
	defer s.Close()

	s.Engine.Begin()
	if err := lowPower(os.Stdout, s.Engine); err != nil {
		log.Error("sleep failed", zap.Error(err))
	}
}

// lowPower sends the adapter to sleep. No vehicle handshake is needed.
func lowPower(w io.Writer, e *obd.Engine) error {
	if err := e.Sleep(); err != nil {
		return err
	}
	fmt.Fprintln(w, "Adapter is in low power mode.")
	return nil
}
