package cleardtc

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
	s, err := session.Dial(cfg)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer s.Close()

	if err := clearCodes(os.Stdout, s.Engine); err != nil {
		log.Error("clear failed", zap.Error(err))
	}
}

// clearCodes clears the stored codes and reads them back.
func clearCodes(w io.Writer, e *obd.Engine) error {
	before, err := e.ReadDTC()
	if err != nil {
		return err
	}
	e.ClearDTC()
	after, err := e.ReadDTC()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Cleared %d trouble code(s).\n", len(before)-len(after))
	for _, code := range after {
		fmt.Fprintf(w, "Still stored: %s %s\n", code.Code, code.Description)
	}
	if len(after) > 0 {
		return fmt.Errorf("%d code(s) remain after clearing", len(after))
	}
	return nil
}
