package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

var typeCmd = &cobra.Command{
	Use:     "type",
	Short:   "Manage event types",
	GroupID: "events",
}

var typeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List event types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceFlag, _ := cmd.Flags().GetString("since")
		var since time.Time
		if sinceFlag != "" {
			t, err := parseTime(sinceFlag, time.Now())
			if err != nil {
				return err
			}
			since = t
		}
		types, err := plantClient.EventTypes(context.Background(), since)
		if err != nil {
			return fmt.Errorf("listing event types: %w", err)
		}
		if jsonOutput {
			printJSON(types)
			return nil
		}
		printEventTypeTable(types)
		return nil
	},
}

var typeShowCmd = &cobra.Command{
	Use:   "show <name-or-id>",
	Short: "Show one event type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		et, err := resolveEventType(context.Background(), plantClient, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(et)
			return nil
		}
		printEventType(et)
		return nil
	},
}

var typeCreateCmd = &cobra.Command{
	Use:   "create <name> <kind>",
	Short: "Create an event type",
	Long: `Create an event type. kind is one of date_time, period, custom_enum,
number or string. custom_enum types take their choices from --options.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		options, _ := cmd.Flags().GetStringSlice("options")
		unique, _ := cmd.Flags().GetBool("unique")
		locked, _ := cmd.Flags().GetBool("locked")

		n := model.NewEventType{
			Name:       args[0],
			Kind:       model.EventDataKind{Type: model.KindTag(strings.ToLower(args[1])), Options: options},
			Deletable:  !locked,
			Modifiable: !locked,
			IsUnique:   unique,
		}
		et, err := plantClient.CreateEventType(context.Background(), n)
		if err != nil {
			return fmt.Errorf("creating event type: %w", err)
		}
		if jsonOutput {
			printJSON(et)
			return nil
		}
		fmt.Printf("Created event type %s (%s)\n", et.Name, et.ID)
		return nil
	},
}

func init() {
	typeListCmd.Flags().String("since", "", "only types created after this time")
	typeCreateCmd.Flags().StringSlice("options", nil, "choices of a custom_enum type")
	typeCreateCmd.Flags().Bool("unique", false, "keep a single instance per plant")
	typeCreateCmd.Flags().Bool("locked", false, "mark instances as neither deletable nor modifiable")

	typeCmd.AddCommand(typeListCmd)
	typeCmd.AddCommand(typeShowCmd)
	typeCmd.AddCommand(typeCreateCmd)
}
