package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/architect-ai/model-router/internal/types"
)

// Version information (set at build time)
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "model-router",
		Short:         "Routes architectural design tasks to language and image models",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApplication(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			return app.Serve(cmd.Context())
		},
	}

	var opts types.InvocationOptions
	resolveCmd := &cobra.Command{
		Use:   "resolve <task>",
		Short: "Print the resolved tier chain for a task without calling any model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApplication(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			cfg, err := app.router.GetModelConfig(args[0])
			if err != nil {
				return err
			}
			decision, err := app.router.Explain(args[0], opts)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"config":   cfg,
				"decision": decision,
			})
		},
	}
	resolveCmd.Flags().BoolVar(&opts.DisableFallback, "disable-fallback", false, "Skip the fallback tier")
	resolveCmd.Flags().BoolVar(&opts.DisableEmergency, "disable-emergency", false, "Skip the emergency tier")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe every configured provider and print availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApplication(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer app.router.Close()

			snapshot, err := app.router.RefreshAvailability(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(snapshot.Providers))
			for name := range snapshot.Providers {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tAVAILABLE")
			for _, name := range names {
				fmt.Fprintf(w, "%s\t%t\n", name, snapshot.Providers[name])
			}
			return w.Flush()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("model-router %s (built %s)\n", version, buildDate)
		},
	}

	rootCmd.AddCommand(serveCmd, resolveCmd, probeCmd, versionCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
