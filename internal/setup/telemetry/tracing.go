package telemetry

import (
	"context"

	"github.com/robalyx/starboard/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SetupTracing configures OpenTelemetry to export to Uptrace. Without a DSN
// spans stay in-process and the returned shutdown does nothing.
func SetupTracing(
	cfg *config.Telemetry, serviceType ServiceType, instanceID, version string, logger *zap.Logger,
) func(context.Context) error {
	if cfg.DSN == "" {
		logger.Debug("Tracing disabled, no DSN configured")
		return func(context.Context) error { return nil }
	}

	name := cfg.ServiceName
	if name == "" {
		name = "starboard"
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.DSN),
		uptrace.WithServiceName(name+"-"+serviceType.String()),
		uptrace.WithServiceVersion(version),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
		uptrace.WithResourceAttributes(attribute.String("service.instance.id", instanceID)),
	)

	logger.Info("Tracing enabled",
		zap.String("service", name),
		zap.String("environment", cfg.Environment))
	return uptrace.Shutdown
}
