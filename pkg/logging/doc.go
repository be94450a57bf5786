// Package logging provides structured logging for healthkube with unified
// log handling and level filtering.
//
// The package is a thin layer over Go's standard slog package. Every log
// entry carries a subsystem identifier so that output from the target
// resolver, the Kubernetes source, the Healthchecks client, and the
// reconciler can be told apart in a single run's output.
//
// # Usage
//
//	import "github.com/Jezza/healthkube/pkg/logging"
//
//	// Initialize with Info level logging to stderr
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	// Log messages
//	logging.Info("Reconciler", "Reconciled %d pairs", n)
//	logging.Debug("Kube", "Listing cronjobs in %s/%s", ctxName, ns)
//	logging.Warn("Healthchecks", "Retrying after %s", delay)
//	logging.Error("EnvPatcher", err, "Failed to patch %s", key)
package logging
