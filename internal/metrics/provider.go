package metrics

import (
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewProvider returns a meter provider that writes every counter to w as
// JSON each interval and once more on Shutdown.
func NewProvider(w io.Writer, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	opts := []sdkmetric.PeriodicReaderOption{}
	if interval > 0 {
		opts = append(opts, sdkmetric.WithInterval(interval))
	}
	reader := sdkmetric.NewPeriodicReader(exporter, opts...)
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil
}
