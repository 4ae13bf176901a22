package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	processRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "corral",
		Name:      "process_running",
		Help:      "Whether a supervised process is running (1=running, 0=reaped).",
	}, []string{"process"})

	processExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corral",
		Name:      "process_exits_total",
		Help:      "Total number of reaped processes by termination kind.",
	}, []string{"process", "kind"})

	waitRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corral",
		Name:      "wait_retries_total",
		Help:      "Non-terminal wait4 results that caused the watcher to wait again.",
	}, []string{"reason"})

	watcherFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corral",
		Name:      "watcher_failures_total",
		Help:      "Watchers that lost track of their process or could not publish its exit.",
	}, []string{"process", "reason"})

	droppedLogLines = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corral",
		Name:      "log_lines_dropped_total",
		Help:      "Process output lines discarded because the notification stream fell behind.",
	}, []string{"process"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "corral",
		Name:      "build_info",
		Help:      "Build metadata for the running corral binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(processRunning, processExits, waitRetries, watcherFailures, droppedLogLines, buildInfo)
}

// Registry returns the Prometheus registry containing all corral metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetProcessRunning records whether the named process is alive.
func SetProcessRunning(process string, running bool) {
	if process == "" {
		return
	}
	value := 0.0
	if running {
		value = 1.0
	}
	processRunning.WithLabelValues(process).Set(value)
}

// ObserveExit counts a reaped process under its termination kind.
func ObserveExit(process, kind string) {
	if process == "" || kind == "" {
		return
	}
	processExits.WithLabelValues(process, kind).Inc()
}

// IncrementWaitRetry counts one transient wait4 result.
func IncrementWaitRetry(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	waitRetries.WithLabelValues(reason).Inc()
}

// IncrementWatcherFailure counts a watcher that gave up on its process.
func IncrementWatcherFailure(process, reason string) {
	label := process
	if label == "" {
		label = "unknown"
	}
	watcherFailures.WithLabelValues(label, reason).Inc()
}

// AddDroppedLogLines counts output lines discarded for a process.
func AddDroppedLogLines(process string, count int) {
	if process == "" || count <= 0 {
		return
	}
	droppedLogLines.WithLabelValues(process).Add(float64(count))
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetProcess clears the per-process series for a process name.
func ResetProcess(process string) {
	if process == "" {
		return
	}
	processRunning.DeleteLabelValues(process)
	processExits.DeletePartialMatch(prometheus.Labels{"process": process})
	watcherFailures.DeletePartialMatch(prometheus.Labels{"process": process})
	droppedLogLines.DeleteLabelValues(process)
}
