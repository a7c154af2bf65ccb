package listener

import (
	"context"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/logger"
)

// LogListener mirrors every event into the structured log. It never fails.
type LogListener struct {
	logger logger.Logger
}

// NewLogListener creates a logging listener.
func NewLogListener(log logger.Logger) *LogListener {
	return &LogListener{logger: log}
}

func (l *LogListener) ServiceRegistered(_ context.Context, serviceID uint64, provider domain.Address, at epoch.Epoch) error {
	l.logger.Info("service registered",
		logger.Uint64("service_id", serviceID),
		logger.String("provider", string(provider)),
		logger.Uint64("epoch", uint64(at)))
	return nil
}

func (l *LogListener) UptimeReported(_ context.Context, provider domain.Address, online bool, reporter domain.Address, at epoch.Epoch) error {
	l.logger.Info("uptime reported",
		logger.String("provider", string(provider)),
		logger.Bool("online", online),
		logger.String("reporter", string(reporter)),
		logger.Uint64("epoch", uint64(at)))
	return nil
}

func (l *LogListener) ServiceDeregistered(_ context.Context, serviceID uint64, provider domain.Address, at epoch.Epoch) error {
	l.logger.Info("service deregistered",
		logger.Uint64("service_id", serviceID),
		logger.String("provider", string(provider)),
		logger.Uint64("epoch", uint64(at)))
	return nil
}
