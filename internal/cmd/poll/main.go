package poll

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"obdkit/internal/config"
	"obdkit/internal/monitor"
	"obdkit/internal/publisher"
	"obdkit/internal/session"
	"obdkit/pkg/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// dtcInterval is how often the trouble code list is republished.
const dtcInterval = 30 * time.Second

func Run(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	pids, err := cfg.PIDList()
	if err != nil {
		log.Fatal("invalid PID list", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := session.Open(cfg)
	if err != nil {
		log.Fatal("failed to open adapter", zap.Error(err))
	}
	defer s.Close()
	s.Simulate(ctx)

	m := monitor.New(s.Engine, monitor.Config{
		PIDs:        pids,
		Protocol:    s.Protocol(),
		Interval:    cfg.Interval,
		DTCInterval: dtcInterval,
	})
	p := publisher.New(publisher.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Topic:    cfg.MQTT.Topic,
		QoS:      cfg.MQTT.QoS,
	}, commandHandler(ctx, m))
	if err := p.Connect(); err != nil {
		log.Fatal("failed to connect to MQTT broker", zap.Error(err))
	}
	defer p.Disconnect()

	m.OnReading(func(r monitor.Reading) {
		if err := p.Publish(r); err != nil {
			log.Warn("publish failed", zap.Error(err))
		}
	})
	if err := m.Start(ctx); err != nil {
		log.Fatal("failed to start monitor", zap.Error(err))
	}
	defer m.Stop()

	log.Info("polling", zap.Int("pids", len(pids)), zap.Duration("interval", cfg.Interval))
	ticker := time.NewTicker(dtcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			codes, err := m.GetErrors()
			if err != nil {
				log.Debug("trouble codes unavailable", zap.Error(err))
				continue
			}
			if err := p.PublishDTCs(codes); err != nil {
				log.Warn("publish failed", zap.Error(err))
			}
		}
	}
}

// commandHandler maps command topic payloads onto monitor operations.
func commandHandler(ctx context.Context, m monitor.Provider) publisher.CommandHandler {
	return func(cmd string) error {
		switch cmd {
		case "clear-dtc":
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return m.ClearDTC(ctx)
		}
		return fmt.Errorf("unknown command %q", cmd)
	}
}
