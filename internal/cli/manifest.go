package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/avalon/sftpc/internal/aggregator"
	"github.com/avalon/sftpc/internal/controller"
	"github.com/avalon/sftpc/internal/events"
	"github.com/avalon/sftpc/internal/queue"
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and validate manifest files",
	}
	cmd.AddCommand(newManifestStageCmd())
	return cmd
}

func newManifestStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage <manifest>",
		Short: "Parse a manifest, compute package hashes, and print what would be staged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()

			q := queue.New(1)
			bus := events.NewEventBus(0)
			agg := aggregator.New(bus)
			ctl := controller.New(q, agg, bus, workers, nil)

			logCh := bus.Subscribe(events.EventLog)
			logStop := make(chan struct{})
			logStopped := make(chan struct{})
			go func() {
				defer close(logStopped)
				logBusEvents(log, logCh, logStop)
			}()

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetDescription("staging "+args[0]),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionSetRenderBlankState(true),
			)
			_ = bar.Add(1)

			stageErr := ctl.Stage(args[0])
			_ = bar.Finish()

			close(logStop)
			bus.Unsubscribe(events.EventLog, logCh)
			<-logStopped
			bus.Close()

			if stageErr != nil {
				return fmt.Errorf("stage manifest: %w", stageErr)
			}

			packages := ctl.All()
			fmt.Printf("\nstaged %d package(s)\n", len(packages))
			for _, pkg := range packages {
				fmt.Printf("  %s  %s/%s -> %s  %d byte(s)  %d file(s)  %s\n",
					pkg.Hash, pkg.Project, pkg.Type, pkg.Site, pkg.TotalSize, len(pkg.Jobs), pkg.Status())
			}
			return nil
		},
	}
}
