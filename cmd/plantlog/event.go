package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

var eventCmd = &cobra.Command{
	Use:     "event",
	Short:   "Record and query plant events",
	GroupID: "events",
}

var eventPutCmd = &cobra.Command{
	Use:   "put <plant-id> <type> <value>",
	Short: "Record an event",
	Long: `Record an event for a plant. The value is parsed according to the
event type's kind: a time for date_time, START..END for period, an option
name for custom_enum, a number or free text.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		plant, err := parsePlantID(args[0])
		if err != nil {
			return err
		}
		et, err := resolveEventType(ctx, plantClient, args[1])
		if err != nil {
			return err
		}
		now := time.Now()
		data, err := parseData(et.Kind, args[2], now)
		if err != nil {
			return err
		}
		at := now.UTC()
		if s, _ := cmd.Flags().GetString("at"); s != "" {
			if at, err = parseTime(s, now); err != nil {
				return err
			}
		}

		ev, err := plantClient.PutEvent(ctx, model.NewEvent{EventTypeID: et.ID, EntityID: plant, Data: data, EventDate: at})
		if err != nil {
			return fmt.Errorf("recording event: %w", err)
		}
		if jsonOutput {
			printJSON(ev)
			return nil
		}
		fmt.Printf("Recorded %s = %s (%s)\n", et.Name, formatData(ev.Data, et.Kind), ev.ID)
		return nil
	},
}

var eventQueryCmd = &cobra.Command{
	Use:   "query <plant-id> <type>",
	Short: "Query a plant's events of one type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		plant, err := parsePlantID(args[0])
		if err != nil {
			return err
		}
		et, err := resolveEventType(ctx, plantClient, args[1])
		if err != nil {
			return err
		}
		mode, err := modeFromFlags(cmd)
		if err != nil {
			return err
		}
		events, err := plantClient.GetEvents(ctx, model.EventQuery{EventTypeID: et.ID, EntityID: plant, Mode: mode})
		if err != nil {
			return fmt.Errorf("querying events: %w", err)
		}
		if jsonOutput {
			printJSON(events)
			return nil
		}
		printEventTable(et, events)
		return nil
	},
}

func addModeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("last", 10, "the N most recent events")
	cmd.Flags().String("from", "", "start of a date span (inclusive)")
	cmd.Flags().String("to", "", "end of a date span (inclusive, default now)")
	cmd.Flags().Bool("all", false, "every event, oldest first")
}

// modeFromFlags picks All, Span or LastNth in that order of precedence.
func modeFromFlags(cmd *cobra.Command) (model.QueryMode, error) {
	if all, _ := cmd.Flags().GetBool("all"); all {
		return model.All(), nil
	}
	now := time.Now()
	if from, _ := cmd.Flags().GetString("from"); from != "" {
		start, err := parseTime(from, now)
		if err != nil {
			return model.QueryMode{}, err
		}
		end := now.UTC()
		if to, _ := cmd.Flags().GetString("to"); to != "" {
			if end, err = parseTime(to, now); err != nil {
				return model.QueryMode{}, err
			}
		}
		return model.Span(start, end), nil
	}
	n, _ := cmd.Flags().GetInt("last")
	if n < 0 {
		return model.QueryMode{}, fmt.Errorf("--last must not be negative")
	}
	return model.LastNth(n), nil
}

func init() {
	eventPutCmd.Flags().String("at", "", "event date (default now)")
	addModeFlags(eventQueryCmd)

	eventCmd.AddCommand(eventPutCmd)
	eventCmd.AddCommand(eventQueryCmd)
}
