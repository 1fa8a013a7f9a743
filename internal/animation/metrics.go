package animation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/animscope/internal/animation"

type metrics struct {
	groupsCreated   metric.Int64Counter
	groupsMerged    metric.Int64Counter
	payloadsDropped metric.Int64Counter
	remoteErrors    metric.Int64Counter
	frames          metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	met := &metrics{}

	var err error
	met.groupsCreated, err = m.Int64Counter(
		"animation.groups.created",
		metric.WithDescription("Groups registered from started animations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating groups created counter: %w", err)
	}

	met.groupsMerged, err = m.Int64Counter(
		"animation.groups.merged",
		metric.WithDescription("Groups refreshed by an equivalent restart"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating groups merged counter: %w", err)
	}

	met.payloadsDropped, err = m.Int64Counter(
		"animation.payloads.dropped",
		metric.WithDescription("Started payloads ignored as malformed or empty"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating payloads dropped counter: %w", err)
	}

	met.remoteErrors, err = m.Int64Counter(
		"animation.remote.errors",
		metric.WithDescription("Failed fire-and-forget protocol calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating remote errors counter: %w", err)
	}

	met.frames, err = m.Int64Counter(
		"capture.frames",
		metric.WithDescription("Screencast frames fanned out to groups"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	return met, nil
}

func (m *metrics) dropped(reason string) {
	m.payloadsDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metrics) remoteError(op string) {
	m.remoteErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}
