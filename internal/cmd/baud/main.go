package baud

import (
	"fmt"
	"strconv"

	"obdkit/internal/config"
	"obdkit/internal/obd"
	"obdkit/internal/session"
	"obdkit/pkg/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rates lists the speeds the adapter firmware accepts.
var rates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

func Run(cmd *cobra.Command, args []string) {
	rate, err := parseRate(args[0])
	if err != nil {
		log.Fatal("invalid baud rate", zap.Error(err))
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	s, err := session.Dial(cfg)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer s.Close()

	if err := switchRate(s.Engine, rate); err != nil {
		log.Fatal("baud rate change failed", zap.Error(err))
	}
	fmt.Printf("Adapter now at %d baud.\n", rate)
}

func parseRate(arg string) (int, error) {
	rate, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", arg)
	}
	for _, r := range rates {
		if r == rate {
			return rate, nil
		}
	}
	return 0, fmt.Errorf("%d is not one of %v", rate, rates)
}

// switchRate changes speed and checks the adapter still answers.
func switchRate(e *obd.Engine, rate int) error {
	if err := e.SetBaudRate(rate); err != nil {
		return err
	}
	if _, err := e.Voltage(); err != nil {
		return fmt.Errorf("adapter silent at %d baud: %w", rate, err)
	}
	return nil
}
