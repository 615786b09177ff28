package remote

import (
	"github.com/oneconcern/irmin/pkg/metrics"
)

// M describes metrics for the remote package
type M struct {
	Volume struct {
		Objects metrics.ObjectsMetrics `group:"objects" description:"metrics about transferred objects"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the remote package"`
}
