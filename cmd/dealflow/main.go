package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dealflow/internal/agent"
	"dealflow/internal/config"
	"dealflow/internal/llm"
	"dealflow/internal/logging"
	"dealflow/internal/orchestrator"
	"dealflow/internal/scraper"
	"dealflow/internal/store"
)

var (
	flagConfig string
	flagModel  string
	flagDB     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dealflow",
		Short:         "Agent-driven deal sourcing workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path")
	root.PersistentFlags().StringVar(&flagModel, "model", "", "override the generation model")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "override the database path")

	root.AddCommand(newScanCmd())
	root.AddCommand(newSourceCmd())
	root.AddCommand(newOutreachCmd())
	root.AddCommand(newDiligenceCmd())
	root.AddCommand(newIntegrateCmd())
	root.AddCommand(newStatsCmd())
	return root
}

// app bundles the wired runtime pieces shared by every subcommand.
type app struct {
	cfg    config.Config
	logger logging.Logger
	orch   *orchestrator.Orchestrator
	store  *store.SQLiteStore
}

func buildApp(ctx context.Context) (*app, error) {
	opts := []config.Option{}
	if flagConfig != "" {
		opts = append(opts, config.WithPath(flagConfig))
	}
	opts = append(opts, config.WithOverride(func(cfg *config.Config) {
		if flagModel != "" {
			cfg.LLMModel = flagModel
		}
		if flagDB != "" {
			cfg.DatabasePath = flagDB
		}
	}))

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}

	roster, err := agent.LoadOverlay(cfg.AgentOverlayPath, agent.DefaultRoster())
	if err != nil {
		return nil, err
	}

	db, err := store.NewSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		orch: orchestrator.New(roster, client,
			orchestrator.WithLogger(logging.WithComponent(logger, "orchestrator"))),
		store: db,
	}, nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

func buildClient(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "mock":
		return llm.NewMockClient(cfg.LLMModel), nil
	case "openai", "":
		return llm.NewOpenAIClient(cfg.LLMModel, llm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.TimeoutSeconds,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newScanCmd() *cobra.Command {
	var location, term string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Search the business directories and persist raw company records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			delay := time.Duration(a.cfg.ScrapeDelayMS) * time.Millisecond
			sources := []scraper.Source{}
			if a.cfg.DirectoryBaseURL != "" {
				sources = append(sources, scraper.NewDirectoryClient(a.cfg.DirectoryBaseURL, delay,
					logging.WithComponent(a.logger, "scraper.directory")))
			}
			if a.cfg.RegistryBaseURL != "" {
				sources = append(sources, scraper.NewRegistryClient(a.cfg.RegistryBaseURL, "", delay,
					logging.WithComponent(a.logger, "scraper.registry")))
			}
			if len(sources) == 0 {
				return fmt.Errorf("no scraper sources configured")
			}

			total := 0
			for _, source := range sources {
				records, err := source.Search(ctx, location, term)
				if err != nil {
					return fmt.Errorf("%s: %w", source.Name(), err)
				}
				for _, record := range records {
					name, _ := record["name"].(string)
					if name == "" {
						continue
					}
					if _, err := a.store.CreateCompany(ctx, store.Company{
						Name:     name,
						Location: location,
						Vertical: term,
						Source:   source.Name(),
						Raw:      record,
					}); err != nil {
						return err
					}
					total++
				}
			}
			fmt.Printf("stored %d companies\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "search location")
	cmd.Flags().StringVar(&term, "term", "", "search term / vertical")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("term")
	return cmd
}

func newSourceCmd() *cobra.Command {
	var thesisJSON string
	var companyID int64
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Run the sourcing workflow for a stored company",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			thesis, err := decodeJSONMap(thesisJSON)
			if err != nil {
				return fmt.Errorf("parse thesis: %w", err)
			}

			company, err := a.store.FindCompany(ctx, companyID)
			if err != nil {
				return err
			}

			result := a.orch.RunSourcing(ctx, thesis, company.Raw)
			if !result.Success {
				return fmt.Errorf("sourcing workflow failed: %s", result.Reason)
			}

			scoreValue := 0.0
			if scout, ok := result.Steps[agent.AgentScout]; ok && scout.Success {
				scoreValue, _ = scout.Output.Number("score")
			}
			if _, err := a.store.CreateScore(ctx, store.Score{
				CompanyID: company.ID,
				Value:     scoreValue,
				Qualified: result.Qualified,
				Detail:    map[string]any{"reason": result.Reason, "violations": result.Violations},
			}); err != nil {
				a.logger.Warn("persist score: %v", err)
			}

			printJSON(result)
			printStats(a.orch)
			return nil
		},
	}
	cmd.Flags().StringVar(&thesisJSON, "thesis", "{}", "investment thesis as JSON")
	cmd.Flags().Int64Var(&companyID, "company", 0, "stored company id")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newOutreachCmd() *cobra.Command {
	var companyID int64
	cmd := &cobra.Command{
		Use:   "outreach",
		Short: "Draft a compliance-gated outreach message for a stored company",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			company, err := a.store.FindCompany(ctx, companyID)
			if err != nil {
				return err
			}

			result := a.orch.RunOutreach(ctx, company.Raw, nil)
			if !result.Success {
				return fmt.Errorf("outreach workflow failed: %s", result.Error)
			}
			printJSON(result)
			printStats(a.orch)
			return nil
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 0, "stored company id")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newDiligenceCmd() *cobra.Command {
	var companyID, vertical string
	var documents []string
	cmd := &cobra.Command{
		Use:   "diligence",
		Short: "Review diligence documents for a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result := a.orch.RunDiligence(ctx, companyID, documents, vertical)
			if !result.Success {
				return fmt.Errorf("diligence failed: %s", result.Error)
			}
			printJSON(result.Output)
			printStats(a.orch)
			return nil
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "", "company identifier")
	cmd.Flags().StringVar(&vertical, "vertical", "", "company vertical")
	cmd.Flags().StringArrayVar(&documents, "doc", nil, "document excerpt (repeatable)")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newIntegrateCmd() *cobra.Command {
	var dealJSON string
	cmd := &cobra.Command{
		Use:   "integrate",
		Short: "Draft an integration plan from closed-deal data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			deal, err := decodeJSONMap(dealJSON)
			if err != nil {
				return fmt.Errorf("parse deal: %w", err)
			}

			result := a.orch.RunIntegration(ctx, deal)
			if !result.Success {
				return fmt.Errorf("integration planning failed: %s", result.Error)
			}
			printJSON(result.Output)
			printStats(a.orch)
			return nil
		},
	}
	cmd.Flags().StringVar(&dealJSON, "deal", "{}", "deal data as JSON")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report the persisted sourcing funnel",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			companies, err := a.store.ListCompanies(ctx, limit)
			if err != nil {
				return err
			}

			scored, qualified := 0, 0
			for _, company := range companies {
				scores, err := a.store.ScoresForCompany(ctx, company.ID)
				if err != nil {
					return err
				}
				if len(scores) == 0 {
					continue
				}
				scored++
				latest := scores[0]
				if latest.Qualified {
					qualified++
				}
				fmt.Printf("%6d  %-30s %6.1f  qualified=%t\n",
					company.ID, company.Name, latest.Value, latest.Qualified)
			}
			fmt.Printf("\n%d companies stored, %d scored, %d qualified\n",
				len(companies), scored, qualified)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "max companies to report")
	return cmd
}

func decodeJSONMap(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func printJSON(value any) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", value)
		return
	}
	fmt.Println(string(encoded))
}

func printStats(orch *orchestrator.Orchestrator) {
	stats := orch.Stats()
	fmt.Printf("\n%d executions, %.1f%% success, avg %s\n",
		stats.TotalExecutions, stats.SuccessRate, stats.AverageDuration.Round(time.Millisecond))
	for agentID, per := range stats.PerAgent {
		fmt.Printf("  %-12s %d calls, %d ok\n", agentID, per.Count, per.Successes)
	}
}
