package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plantlog/internal/client"
	"github.com/alfredjeanlab/plantlog/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	authToken  string
	jsonOutput bool
	noColor    bool

	plantClient client.Client
)

func defaultHTTPURL() string {
	if s := os.Getenv("PLANTLOG_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("PLANTLOG_SERVER"); s != "" {
		return s
	}
	if a := activeRemoteGRPC(); a != "" {
		return a
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("PLANTLOG_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

// newClient builds the client selected by --transport.
func newClient() (client.Client, error) {
	switch transport {
	case "http":
		return client.NewHTTPClient(httpURL, authToken), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, authToken)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
	}
}

var rootCmd = &cobra.Command{
	Use:           "plantlog <command>",
	Short:         "Record and query plant care events",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(!noColor && ui.ShouldUseColor(os.Stdout))
		c, err := newClient()
		if err != nil {
			return err
		}
		plantClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if plantClient != nil {
			plantClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "auth-token", defaultToken(), "bearer token sent to the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	rootCmd.SetHelpFunc(styledHelp)

	rootCmd.AddCommand(typeCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(photoCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
