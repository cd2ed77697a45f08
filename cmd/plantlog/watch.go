package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plantlog/internal/cache"
	"github.com/alfredjeanlab/plantlog/internal/client"
	"github.com/alfredjeanlab/plantlog/internal/model"
	plantsync "github.com/alfredjeanlab/plantlog/internal/sync"
	"github.com/alfredjeanlab/plantlog/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <plant-id> <type>...",
	Short: "Show a plant's events and refresh them as they change",
	Long: `Show a plant's events and keep them current. Reads go through the
client cache: a series is refetched only when a dirty notification for it
arrives or the cache cannot answer the query.`,
	GroupID: "events",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		plant, err := parsePlantID(args[0])
		if err != nil {
			return err
		}
		var types []*model.EventType
		for _, ref := range args[1:] {
			et, err := resolveEventType(ctx, plantClient, ref)
			if err != nil {
				return err
			}
			types = append(types, et)
		}
		mode, err := modeFromFlags(cmd)
		if err != nil {
			return err
		}
		once, _ := cmd.Flags().GetBool("once")
		interval, _ := cmd.Flags().GetDuration("refresh")

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		events := cache.NewEventCache()
		dirty := cache.NewDirtyManager()
		reconciler := cache.NewReconciler(plantClient, events, dirty, logger)

		v := &seriesView{plant: plant, types: types, mode: mode, reconciler: reconciler}
		if err := v.render(ctx); err != nil {
			return err
		}
		if once {
			return nil
		}

		var source client.DirtySource = plantClient
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL != "" {
			ns, err := client.NewNATSSource(natsURL)
			if err != nil {
				return fmt.Errorf("connecting to NATS: %w", err)
			}
			defer ns.Close()
			source = ns
		}

		changed := make(chan struct{}, 1)
		sched := plantsync.NewScheduler(plantsync.Options{
			Events:   events,
			Dirty:    dirty,
			Client:   plantClient,
			Source:   source,
			Interval: interval,
			Logger:   logger,
			OnInvalidate: func(m client.DirtyMessage) {
				if m.Resync || m.Notification.EntityID == plant {
					select {
					case changed <- struct{}{}:
					default:
					}
				}
			},
		})
		sched.Start()
		defer sched.Stop()

		debounce := time.NewTimer(0)
		debounce.Stop()
		select {
		case <-debounce.C:
		default:
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				debounce.Reset(200 * time.Millisecond)
			case <-debounce.C:
				if err := v.render(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			}
		}
	},
}

// seriesView prints one plant's series through the reconciler.
type seriesView struct {
	plant      uuid.UUID
	types      []*model.EventType
	mode       model.QueryMode
	reconciler *cache.Reconciler
}

func (v *seriesView) render(ctx context.Context) error {
	if jsonOutput {
		out := map[string][]*model.EventInstance{}
		for _, et := range v.types {
			evs, _, err := v.reconciler.Get(ctx, model.EventQuery{EventTypeID: et.ID, EntityID: v.plant, Mode: v.mode})
			if err != nil {
				return err
			}
			out[et.Name] = evs
		}
		printJSON(out)
		return nil
	}

	fmt.Printf("\n%s %s\n", ui.Muted(time.Now().Format("15:04:05")), ui.Accent(v.plant.String()))
	for _, et := range v.types {
		evs, outcome, err := v.reconciler.Get(ctx, model.EventQuery{EventTypeID: et.ID, EntityID: v.plant, Mode: v.mode})
		if err != nil {
			return fmt.Errorf("%s: %w", et.Name, err)
		}
		tag := ui.Stale(outcome.String())
		if outcome == cache.OutcomeHit {
			tag = ui.Fresh(outcome.String())
		}
		fmt.Printf("\n%s [%s]\n", ui.Accent(et.Name), tag)
		printEventTable(et, evs)
	}
	return nil
}

func init() {
	addModeFlags(watchCmd)
	watchCmd.Flags().Bool("once", false, "print once and exit")
	watchCmd.Flags().String("nats", "", "NATS URL to receive notifications from instead of the server stream")
	watchCmd.Flags().Duration("refresh", plantsync.DefaultRefreshInterval, "event type refresh interval")
}
