package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wavelet/txnflow/common/stats"
	"github.com/wavelet/txnflow/eventstore"
	"github.com/wavelet/txnflow/monitor"
	"github.com/wavelet/txnflow/saga"
)

// Demo driver for the transaction pipeline. Constructs the event store,
// monitor and orchestrator once at startup, runs a synthetic workload of
// concurrent transfer sagas, then dumps the dashboard, an audit export
// and the raw instrument registry.
func main() {
	d := &demoCmd{}

	rootCmd := &cobra.Command{
		Use:   "txnflow",
		Short: "txnflow drives saga-coordinated financial transactions",
		Run:   func(*cobra.Command, []string) {},
	}

	demo := &cobra.Command{
		Use:   "demo",
		Short: "run a synthetic transaction workload and print reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return d.run()
		},
	}
	demo.Flags().IntVar(&d.numSagas, "transactions", 20, "number of sagas to run")
	demo.Flags().IntVar(&d.failEvery, "fail_every", 5, "fail the clear_funds step of every Nth saga (0 disables)")
	demo.Flags().StringVar(&d.logLevel, "log_level", "info", "logrus level: debug, info, warn, error")
	rootCmd.AddCommand(demo)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

type demoCmd struct {
	numSagas  int
	failEvery int
	logLevel  string
}

func (d *demoCmd) run() error {
	level, err := log.ParseLevel(d.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	stat := stats.DefaultStatsReceiver()
	store := eventstore.MakeInMemoryStore()
	mon := monitor.NewMonitor(nil, stat)
	orc := saga.NewOrchestrator(store, mon, stat)
	mon.SetActiveSagasFn(func() int { return orc.Statistics().Active })
	mon.SetDeadletterSizeFn(func() int { return len(orc.Deadletter()) })

	var wg sync.WaitGroup
	for i := 0; i < d.numSagas; i++ {
		userID := fmt.Sprintf("user%d", i%3)
		s := orc.CreateSaga(userID, "transfer", float64(10*(i+1)), nil)
		d.addSteps(orc, s.ID, i)

		wg.Add(1)
		go func(sagaID string) {
			defer wg.Done()
			if _, err := orc.Execute(context.Background(), sagaID); err != nil {
				log.Errorf("Unexpected orchestrator error for %s: %v", sagaID, err)
			}
		}(s.ID)
	}
	wg.Wait()

	return d.report(orc, store, mon, stat)
}

func (d *demoCmd) addSteps(orc *saga.Orchestrator, sagaID string, n int) {
	reserve := saga.HandlerFunc(func(ctx context.Context, s *saga.Saga) (interface{}, error) {
		return map[string]interface{}{"reservation": s.ID}, nil
	})
	release := saga.CompensatorFunc(func(ctx context.Context, s *saga.Saga, result interface{}) error {
		log.Infof("Releasing reservation for saga %s", s.ID)
		return nil
	})
	clear := saga.HandlerFunc(func(ctx context.Context, s *saga.Saga) (interface{}, error) {
		if d.failEvery > 0 && n%d.failEvery == d.failEvery-1 {
			return nil, fmt.Errorf("clearing house declined transaction")
		}
		return nil, nil
	})
	settle := saga.HandlerFunc(func(ctx context.Context, s *saga.Saga) (interface{}, error) {
		return nil, nil
	})

	orc.AddStep(sagaID, "reserve_funds", reserve, release, 0, 3)
	orc.AddStep(sagaID, "clear_funds", clear, saga.NoCompensation, 0, 2)
	orc.AddStep(sagaID, "settle_funds", settle, saga.NoCompensation, 0, 3)
}

func (d *demoCmd) report(orc *saga.Orchestrator, store *eventstore.Store, mon *monitor.Monitor, stat stats.StatsReceiver) error {
	dashboard, err := json.MarshalIndent(mon.GetDashboardData(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println("=== dashboard ===")
	fmt.Println(string(dashboard))

	export, err := json.MarshalIndent(store.AuditExport("user0"), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println("=== audit export for user0 ===")
	fmt.Println(string(export))

	orcStats := orc.Statistics()
	fmt.Printf("=== sagas: total=%d completed=%d rolled_back=%d deadlettered=%d ===\n",
		orcStats.TotalSagas, orcStats.Completed, orcStats.RolledBack, orcStats.DeadletterSize)

	fmt.Println("=== instruments ===")
	fmt.Println(string(stat.Render(true)))
	return nil
}
