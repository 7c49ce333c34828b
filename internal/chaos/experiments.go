package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nftmarket/internal/catalog"
)

// ConsistencyMetric reports the percentage of assets whose owner and price
// match the last ownership record and whose first record is the creator.
func ConsistencyMetric(svc catalog.Service) Metric {
	return Metric{
		Name: "catalog_consistency",
		Query: func(ctx context.Context) (float64, error) {
			assets, err := svc.ListAll(ctx)
			if err != nil {
				return 0, err
			}
			if len(assets) == 0 {
				return 100, nil
			}

			consistent := 0
			for _, a := range assets {
				if len(a.History) == 0 {
					continue
				}
				first, last := a.History[0], a.History[len(a.History)-1]
				if catalog.SameIdentity(first.Owner, a.Creator) && last.Owner == a.Owner && last.Price == a.Price {
					consistent++
				}
			}
			return float64(consistent) * 100 / float64(len(assets)), nil
		},
		Threshold: Threshold{Operator: "==", Value: 100},
	}
}

// ReadAvailabilityMetric issues samples list reads and reports the
// percentage that succeeded.
func ReadAvailabilityMetric(svc catalog.Service, samples int) Metric {
	if samples < 1 {
		samples = 1
	}
	return Metric{
		Name: "read_success_rate",
		Query: func(ctx context.Context) (float64, error) {
			ok := 0
			for i := 0; i < samples; i++ {
				if _, err := svc.ListAll(ctx); err == nil {
					ok++
				}
			}
			return float64(ok) * 100 / float64(samples), nil
		},
		Threshold: Threshold{Operator: ">=", Value: 100},
	}
}

// PurchaseRaceExperiment has every buyer purchase assetID at once. Each
// accepted purchase must add exactly one ownership record.
func PurchaseRaceExperiment(svc catalog.Service, assetID string, buyers []string) Experiment {
	var (
		mu       sync.Mutex
		baseline = -1
		accepted int
	)

	lostUpdates := Metric{
		Name: "lost_updates",
		Query: func(ctx context.Context) (float64, error) {
			asset, err := svc.GetByID(ctx, assetID)
			if err != nil {
				return 0, err
			}
			mu.Lock()
			defer mu.Unlock()
			if baseline < 0 {
				return 0, nil
			}
			return float64(baseline + accepted - asset.Version()), nil
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}

	race := func(ctx context.Context) error {
		asset, err := svc.GetByID(ctx, assetID)
		if err != nil {
			return err
		}
		mu.Lock()
		baseline = asset.Version()
		accepted = 0
		mu.Unlock()

		var (
			wg   sync.WaitGroup
			errs []error
		)
		for _, buyer := range buyers {
			wg.Add(1)
			go func(buyer string) {
				defer wg.Done()
				_, err := svc.Purchase(ctx, assetID, buyer, asset.Price)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					accepted++
				case errors.Is(err, catalog.ErrValidation), errors.Is(err, catalog.ErrRateLimited):
					// rejected cleanly
				default:
					errs = append(errs, fmt.Errorf("buyer %s: %w", buyer, err))
				}
			}(buyer)
		}
		wg.Wait()
		return errors.Join(errs...)
	}

	return Experiment{
		Name:        "concurrent-purchase-race",
		Hypothesis:  "Concurrent purchases of one asset never lose or duplicate an ownership record",
		SteadyState: []Metric{ConsistencyMetric(svc), lostUpdates},
		Method:      []Action{{Type: "contention", Target: assetID, Execute: race}},
		Validation: []Assertion{
			{Metric: "lost_updates", Condition: func(v float64) bool { return v == 0 }, Message: "ownership history does not match accepted purchases"},
			{Metric: "catalog_consistency", Condition: func(v float64) bool { return v == 100 }, Message: "catalog left inconsistent"},
		},
	}
}

// FaultInjectionExperiment switches injector to the given faults and checks
// that svc keeps serving reads. svc is expected to sit behind injector.
func FaultInjectionExperiment(injector *Injector, svc catalog.Service, read, write Fault, samples int) Experiment {
	var prevRead, prevWrite Fault

	inject := func(context.Context) error {
		prevRead, prevWrite = injector.Faults()
		injector.SetFaults(read, write)
		return nil
	}
	restore := func(context.Context) error {
		injector.SetFaults(prevRead, prevWrite)
		return nil
	}

	availability := ReadAvailabilityMetric(svc, samples)
	return Experiment{
		Name:        "read-fault-injection",
		Hypothesis:  "Browsing stays available through injected latency and failures because clients retry",
		SteadyState: []Metric{availability},
		Method:      []Action{{Type: "latency", Target: "catalog-http", Execute: inject}},
		Rollback:    []Action{{Type: "latency", Target: "catalog-http", Execute: restore}},
		Validation: []Assertion{
			{Metric: availability.Name, Condition: func(v float64) bool { return v >= 100 }, Message: "reads failed under injected faults"},
		},
	}
}
