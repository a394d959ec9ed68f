package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "affiliana",
		Short:         "Research affiliate niches and export candidate snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(nicheCmd())
	root.AddCommand(keywordCmd())
	root.AddCommand(productsCmd())
	root.AddCommand(candidatesCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(collectCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func nicheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "niche",
		Short: "Niche research",
	}

	research := &cobra.Command{
		Use:   "research <niche>",
		Short: "Fetch the keyword report of a niche's primary keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNicheResearch(cmd.Context(), args[0])
		},
	}

	researchFile := &cobra.Command{
		Use:   "research-file <path>",
		Short: "Research every niche listed in a file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNicheResearchFile(cmd.Context(), args[0])
		},
	}

	importReport := &cobra.Command{
		Use:   "import-report <niche> <report.json>",
		Short: "Record a keyword report file under a niche",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportReport(cmd.Context(), args[0], args[1])
		},
	}

	var force bool
	commissions := &cobra.Command{
		Use:   "commissions",
		Short: "Classify niche commission rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommissions(cmd.Context(), force)
		},
	}
	commissions.Flags().BoolVar(&force, "force", false, "reclassify niches that already have a rate")

	var jsonOutput bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List researched niches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNicheList(cmd.Context(), jsonOutput)
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	cmd.AddCommand(research, researchFile, importReport, commissions, list)
	return cmd
}

func keywordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyword",
		Short: "Keyword history",
	}

	show := &cobra.Command{
		Use:   "show <keyword>",
		Short: "Print a keyword with its full history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeywordShow(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(show)
	return cmd
}

func productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Product research",
	}

	fetch := &cobra.Command{
		Use:   "fetch <niche>",
		Short: "Search marketplace listings for a niche",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsFetch(cmd.Context(), args[0])
		},
	}

	candidates := &cobra.Command{
		Use:   "candidates",
		Short: "Search listings for candidate niches without products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsCandidates(cmd.Context())
		},
	}

	show := &cobra.Command{
		Use:   "show <asin>",
		Short: "Show a stored product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductShow(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(fetch, candidates, show)
	return cmd
}

func candidatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Candidate niches",
	}

	var (
		jsonOutput bool
		minVolume  int
		maxDA      int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List candidate niches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCandidates(cmd.Context(), jsonOutput, minVolume, maxDA)
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	list.Flags().IntVar(&minVolume, "min-volume", -1, "minimum keyword volume (default: from config)")
	list.Flags().IntVar(&maxDA, "max-da", -1, "maximum first-page domain authority (default: from config)")

	stats := &cobra.Command{
		Use:   "stats <niche>",
		Short: "Print the statistics of a niche as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCandidateStats(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, stats)
	return cmd
}

func snapshotCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export candidate statistics as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default: from config)")
	return cmd
}

func collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run one data collection round",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context())
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
