package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends everything registered on the default registry to a Pushgateway
// under job, replacing earlier pushes with the same grouping.
func Push(ctx context.Context, gatewayURL, job string, grouping map[string]string) error {
	if gatewayURL == "" || job == "" {
		return errors.New("metrics: pushgateway url and job required")
	}
	pusher := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	return pusher.PushContext(ctx)
}
