package kube

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Jezza/healthkube/internal/target"
	"github.com/Jezza/healthkube/pkg/logging"
)

// defaultScanParallelism bounds concurrent per-target list calls.
const defaultScanParallelism = 4

// Scan enumerates the CronJobs of every resolved target with bounded
// parallelism and merges the results. Fetches are independent; the only
// shared state is the append-only result slice behind a mutex. The merge
// order is not significant, downstream joins by identity key. A failed
// fetch aborts the scan: reconciling from a partial workload view would
// misreport the missing jobs' checks as orphans.
func Scan(ctx context.Context, fleet *Fleet, specs []target.Spec, envKey string, parallelism int) ([]Workload, error) {
	if parallelism <= 0 {
		parallelism = defaultScanParallelism
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	var mu sync.Mutex
	var workloads []Workload

	for _, spec := range specs {
		namespaces := spec.Namespaces
		if len(namespaces) == 0 {
			// Empty means all namespaces, expressed as one list call.
			namespaces = []string{""}
		}
		for _, namespace := range namespaces {
			group.Go(func() error {
				source, err := fleet.Source(spec.Context)
				if err != nil {
					return err
				}
				listed, err := source.ListCronJobs(groupCtx, namespace, envKey)
				if err != nil {
					return err
				}

				mu.Lock()
				workloads = append(workloads, listed...)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	logging.Info("Kube", "Scanned %d targets, found %d cronjobs", len(specs), len(workloads))
	return workloads, nil
}
