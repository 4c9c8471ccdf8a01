package sensor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/zephyrus-green/ferrycast/internal/sensor"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
