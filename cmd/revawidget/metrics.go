package main

import (
	"github.com/revahq/reva-widget/api"
	"github.com/revahq/reva-widget/metrics"
	"github.com/revahq/reva-widget/recovery"
	"github.com/revahq/reva-widget/widget"
)

// The nil-safe adapters below keep a disabled exporter as a true nil
// interface; a typed-nil pointer would defeat the consumers' nil checks.

func nilSafeMetrics(e *metrics.Exporter) api.MetricsRecorder {
	if e == nil {
		return nil
	}
	return e
}

func nilSafeCounter(e *metrics.Exporter) widget.MessageCounter {
	if e == nil {
		return nil
	}
	return e
}

func nilSafePolls(e *metrics.Exporter) recovery.PollCounter {
	if e == nil {
		return nil
	}
	return e
}
