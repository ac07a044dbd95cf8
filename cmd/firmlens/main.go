// FirmLens: a grounded Q&A assistant over one listed company's financials
// and news.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/firmlens/firmlens/api"
	"github.com/firmlens/firmlens/internal/chat"
	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/graph"
	"github.com/firmlens/firmlens/internal/logging"
	"github.com/firmlens/firmlens/internal/pipeline"
	"github.com/firmlens/firmlens/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global state, set up in PersistentPreRunE.
var (
	cfg  *config.Config
	deps *app
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command tree and closes the graph store whether or not
// the command succeeded. Cobra skips post-run hooks after a RunE error.
func run(args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if deps != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		deps.close(ctx)
	}
	return err
}

var rootCmd = &cobra.Command{
	Use:   "firmlens",
	Short: "FirmLens: grounded Q&A over a company's financials and news",
	Long: `FirmLens scrapes a listed company's profile and financial tables from
Screener.in, collects recent news, stores everything in a Neo4j graph and
answers questions strictly from that stored context.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is normal outside development.
		_ = godotenv.Load()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}

		logger := logging.New(cfg.Logging)
		log.Logger = logger
		deps = newApp(cfg, logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(companiesCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("FirmLens %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := deps.openStore()
		if err != nil {
			return err
		}
		// The server still starts without the graph; /health reports it.
		if err := store.EnsureSchema(ctx); err != nil {
			deps.log.Warn().Err(err).Msg("could not ensure graph schema")
		}
		answerer, err := deps.answerer(store)
		if err != nil {
			return err
		}

		addr := cfg.API.Addr()
		if v, _ := cmd.Flags().GetString("addr"); v != "" {
			addr = v
		}
		srv := api.NewServer(cfg, store, answerer,
			api.WithGatherer(deps.registry),
			api.WithLogger(logging.Component(deps.log, "api")),
		)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: api.host:api.port)")
}

// --- Ingest Command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [symbol]",
	Short: "Scrape, normalize and ingest one company",
	Long: `Fetch a company's Screener.in page and recent news, normalize them and
write them to the graph. Re-running is safe: entities are merged and each
run appends a new metrics snapshot per period.

Examples:
  firmlens ingest TATAELXSI
  firmlens ingest NSE:INFY --company-name Infosys
  firmlens ingest TATAELXSI --dry-run --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		symbol := utils.NormalizeSymbol(cfg.Source.Symbol)
		if len(args) == 1 {
			symbol = utils.NormalizeSymbol(args[0])
		}
		companyName, _ := cmd.Flags().GetString("company-name")
		if companyName == "" && symbol == utils.NormalizeSymbol(cfg.Source.Symbol) {
			companyName = cfg.Source.CompanyName
		}
		skipNews, _ := cmd.Flags().GetBool("skip-news")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := deps.openStore()
		if err != nil {
			return err
		}
		if !dryRun {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		runner, err := deps.runner(store)
		if err != nil {
			return err
		}

		res, err := runner.Run(ctx, pipeline.Options{
			Symbol:      symbol,
			CompanyName: companyName,
			SkipNews:    skipNews,
			DryRun:      dryRun,
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printIngest(res)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("company-name", "", "news search query (default: the scraped company name)")
	ingestCmd.Flags().Bool("skip-news", false, "do not fetch news")
	ingestCmd.Flags().Bool("dry-run", false, "normalize only, write nothing")
	ingestCmd.Flags().Bool("json", false, "print the run result as JSON")
}

func printIngest(res *pipeline.Result) {
	snap := res.Snapshot
	c := snap.Company
	fmt.Printf("🏢 %s (%s)\n", c.Name, c.CompanyID)
	fmt.Printf("   Market Cap:    %s\n", utils.FormatCrores(c.MarketCapCr))
	fmt.Printf("   Current Price: %s\n", utils.FormatPrice(c.CurrentPrice))
	fmt.Printf("   Quarters:      %d\n", len(snap.Quarterly))
	fmt.Printf("   Years:         %d\n", len(snap.Annual))
	fmt.Printf("   News:          %d\n", len(snap.News))
	if res.NewsError != "" {
		fmt.Printf("   ⚠️  News skipped: %s\n", res.NewsError)
	}
	if res.Report == nil {
		fmt.Println("\n   Dry run: nothing written.")
		return
	}
	fmt.Printf("\n✅ Run %s wrote %d records in %s\n", res.Report.RunID, res.Report.Writes(), res.Elapsed.Round(time.Millisecond))
	fmt.Printf("   Ingested at:   %s\n", utils.FormatDateTimeIST(res.Report.IngestedAt))
}

// --- Schema Command ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the graph uniqueness constraints",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := deps.openStore()
		if err != nil {
			return err
		}
		if err := store.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		for _, spec := range graph.Schema {
			fmt.Println(spec.Constraint())
		}
		return nil
	},
}

// --- Context Command ---

var contextCmd = &cobra.Command{
	Use:   "context [company_id]",
	Short: "Print the context block the assistant answers from",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID := cfg.Chat.DefaultCompany
		if len(args) == 1 {
			companyID = strings.TrimSpace(args[0])
		}
		store, err := deps.openStore()
		if err != nil {
			return err
		}
		b, err := chat.Fetch(cmd.Context(), store, companyID, chat.LimitsFromConfig(cfg.Chat))
		if errors.Is(err, graph.ErrNotFound) {
			return fmt.Errorf("company not found: %s", companyID)
		}
		if err != nil {
			return err
		}
		fmt.Println(chat.Render(b))
		return nil
	},
}

// --- Ask Command ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question about a company",
	Long: `Answer a question using only the company's stored financials and news.

Examples:
  firmlens ask "What was net profit last quarter?"
  firmlens ask --company INFOSYS "Any recent regulatory news?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, _ := cmd.Flags().GetString("company")
		if companyID == "" {
			companyID = cfg.Chat.DefaultCompany
		}
		store, err := deps.openStore()
		if err != nil {
			return err
		}
		answerer, err := deps.answerer(store)
		if err != nil {
			return err
		}

		reply := answerer.Answer(cmd.Context(), companyID, strings.Join(args, " "))
		fmt.Println(reply.Reply)
		switch reply.Meta.Error {
		case "", chat.ErrTagMissingKey:
			return nil
		default:
			if reply.Meta.Detail != "" {
				return fmt.Errorf("%s: %s", reply.Meta.Error, reply.Meta.Detail)
			}
			return errors.New(reply.Meta.Error)
		}
	},
}

func init() {
	askCmd.Flags().String("company", "", "company id (default: chat.default_company)")
}

// --- Companies Command ---

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List companies in the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := deps.openStore()
		if err != nil {
			return err
		}
		companies, err := store.Companies(cmd.Context(), 50)
		if err != nil {
			return err
		}
		if len(companies) == 0 {
			fmt.Println("No companies ingested yet. Run: firmlens ingest <symbol>")
			return nil
		}
		for _, c := range companies {
			fmt.Printf("  %-24s %-32s %s\n", c.CompanyID, c.Name, deref(c.Sector))
		}
		return nil
	},
}

func deref(s *string) string {
	if s == nil {
		return utils.Missing
	}
	return *s
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  FirmLens — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (IST):    %s\n", utils.FormatDateTimeIST(utils.NowIST()))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Graph Store:   %s (%s)\n", cfg.Store.Backend, cfg.Store.URI)
		fmt.Printf("    LLM:           %s\n", cfg.LLM.Model)
		fmt.Printf("    News:          %s\n", cfg.News.Provider)
		fmt.Printf("    Company:       %s (%s)\n", cfg.Chat.DefaultCompany, cfg.Source.Symbol)
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}
		fmt.Println()

		storeStatus := "✅ reachable"
		store, err := deps.openStore()
		if err == nil {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			err = store.Ping(ctx)
			cancel()
		}
		if err != nil {
			storeStatus = "❌ " + err.Error()
		}
		fmt.Printf("  Graph Store:     %s\n", storeStatus)
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
