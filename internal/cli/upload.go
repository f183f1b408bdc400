package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/avalon/sftpc/internal/aggregator"
	"github.com/avalon/sftpc/internal/constants"
	"github.com/avalon/sftpc/internal/controller"
	"github.com/avalon/sftpc/internal/events"
	"github.com/avalon/sftpc/internal/model"
	"github.com/avalon/sftpc/internal/progressui"
	"github.com/avalon/sftpc/internal/queue"
	"github.com/avalon/sftpc/internal/site"
	"github.com/avalon/sftpc/internal/worker"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Dispatch staged packages for upload",
	}
	cmd.AddCommand(newUploadRunCmd())
	return cmd
}

func newUploadRunCmd() *cobra.Command {
	var requeueFailed bool
	var showErrors bool

	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Stage a manifest, dispatch every package, and watch it upload to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			ctx := GetContext()

			queueSize := workers * constants.DefaultQueueMultiplier
			if queueSize > constants.MaxQueueSize {
				queueSize = constants.MaxQueueSize
			}
			q := queue.New(queueSize)
			sites := site.NewDirectory(sitesDir)
			bus := events.NewEventBus(0)
			agg := aggregator.New(bus)
			ctl := controller.New(q, agg, bus, workers, nil)

			pool := worker.New(workers, q, sites, log)
			go agg.Run(pool.Progress())

			poolDone := make(chan error, 1)
			go func() { poolDone <- pool.Run() }()

			busEvents := bus.SubscribeAll()
			logStop := make(chan struct{})
			logDone := make(chan struct{})
			go func() {
				defer close(logDone)
				logBusEvents(log, busEvents, logStop)
			}()
			closeBus := func() {
				close(logStop)
				bus.UnsubscribeAll(busEvents)
				<-logDone
				bus.Close()
			}

			if err := ctl.Stage(args[0]); err != nil {
				closeBus()
				return fmt.Errorf("stage manifest: %w", err)
			}
			ctl.DispatchAll()

			var stopOnce sync.Once
			doStop := func() { stopOnce.Do(ctl.Stop) }

			stop := make(chan struct{})
			go func() {
				<-ctx.Done()
				doStop()
				close(stop)
			}()

			ui := progressui.New(isTerminalStderr())
			watchDone := make(chan struct{})
			go func() {
				ui.Run(ctl.UploadView, stop)
				close(watchDone)
			}()

			select {
			case <-watchDone:
			case <-ctx.Done():
				<-watchDone
			}

			if requeueFailed {
				var anyRequeued bool
				for _, pkg := range ctl.All() {
					if len(pkg.FailedJobs()) > 0 {
						bus.PublishLog(events.InfoLevel, "requeuing failed jobs for package "+pkg.Hash, nil)
						ctl.RequeueFailed(pkg)
						anyRequeued = true
					}
				}
				if anyRequeued {
					requeueDone := make(chan struct{})
					go func() {
						progressui.New(isTerminalStderr()).Run(ctl.UploadView, nil)
						close(requeueDone)
					}()
					<-requeueDone
				}
			}

			doStop()
			<-poolDone

			if dropped := bus.GetDroppedEventCount(); dropped > 0 {
				log.Warn().Int64("dropped_events", dropped).Msg("event bus dropped events under backpressure")
			}
			closeBus()

			return printSummary(ctl.All(), showErrors)
		},
	}

	cmd.Flags().BoolVar(&requeueFailed, "requeue-failed", false, "After the initial run completes, requeue and retry any failed jobs once")
	cmd.Flags().BoolVar(&showErrors, "show-errors", false, "Print (src, dst, error) detail for every failed job in an erroring package")

	return cmd
}

func printSummary(packages []*model.Package, showErrors bool) error {
	var failed int
	fmt.Println("\nfinal status:")
	for _, pkg := range packages {
		fmt.Printf("  %s  %s/%s -> %s  %.2f%%  %s\n",
			pkg.Hash, pkg.Project, pkg.Type, pkg.Site, pkg.Percentage(), pkg.Status())
		if pkg.Status() == model.StatusErrored || pkg.Status() == model.StatusEndWithError {
			failed++
			if showErrors {
				for _, job := range pkg.FailedJobs() {
					_, err := job.Result()
					fmt.Printf("    %s -> %s: %v\n", job.Src, job.Dst, err)
				}
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d package(s) ended with errors", failed)
	}
	return nil
}

func isTerminalStderr() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
