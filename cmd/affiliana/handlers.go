package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brunotatsuya/affiliana-cli/internal/config"
	"github.com/brunotatsuya/affiliana-cli/internal/logging"
	"github.com/brunotatsuya/affiliana-cli/internal/scheduler"
	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/alert"
	"github.com/brunotatsuya/affiliana-cli/pkg/candidate"
	"github.com/brunotatsuya/affiliana-cli/pkg/keyword"
	"github.com/brunotatsuya/affiliana-cli/pkg/llm"
	"github.com/brunotatsuya/affiliana-cli/pkg/niche"
	"github.com/brunotatsuya/affiliana-cli/pkg/product"
	"github.com/brunotatsuya/affiliana-cli/pkg/research"
	"github.com/brunotatsuya/affiliana-cli/pkg/server"
	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       store.Store
	niches   *niche.Registry
	keywords *keyword.Manager
	catalog  *product.Catalog
	engine   *candidate.Engine
	research *research.NicheResearch
	products *research.ProductResearch // nil when marketplace search is disabled
	snapshot *research.Snapshot
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Mode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		niches:   niche.NewRegistry(db, log.Named("niche")),
		keywords: keyword.NewManager(db, log.Named("keyword")),
		catalog:  product.NewCatalog(db),
		engine:   candidate.NewEngine(db, log.Named("candidate")),
	}

	filter := source.NewFilter(cfg.Filter.ExcludeKeywords)
	var classifier source.CommissionClassifier
	ideas := buildIdeaSources(cfg, filter, log)
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		client := llm.NewClient(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)
		classifier = llm.NewClassifier(client)
		ideas = append(ideas, llm.NewIdeas(client, filter))
		log.Debug("llm enabled", zap.String("provider", cfg.LLM.Provider))
	}

	var reports source.KeywordSource = source.NewReportDir(cfg.Research.ReportsDir)
	if cfg.Sources.Ubersuggest.Enabled {
		reports = source.NewUbersuggest(source.UbersuggestOptions{
			BaseURL:  cfg.Sources.Ubersuggest.BaseURL,
			Language: cfg.Research.Language,
			LocID:    cfg.Research.LocID,
		})
	}

	a.research = research.NewNicheResearch(a.niches, a.keywords, reports, classifier, ideas,
		research.NicheOptions{
			PrimaryPrefix:   cfg.Research.PrimaryPrefix,
			CommissionBatch: cfg.Research.CommissionBatch,
			Retry:           source.DefaultRetry(),
		}, log.Named("research"))

	if cfg.Sources.Amazon.Enabled {
		a.products = research.NewProductResearch(a.niches, a.catalog, a.engine,
			source.NewAmazonSearch(cfg.Sources.Amazon.BaseURL), a.thresholds(), log.Named("products"))
	}

	a.snapshot = research.NewSnapshot(a.engine, a.research, a.products, buildAlertManager(cfg),
		a.thresholds(), cfg.Candidates.Workers, log.Named("snapshot"))
	return a, nil
}

func (a *app) close() {
	_ = a.db.Close()
	_ = a.log.Sync()
}

func (a *app) thresholds() research.Thresholds {
	return research.Thresholds{
		MinVolume:          a.cfg.Candidates.MinVolume,
		MaxDomainAuthority: a.cfg.Candidates.MaxDomainAuthority,
	}
}

func buildIdeaSources(cfg *config.Config, filter *source.Filter, log *zap.Logger) []source.IdeaSource {
	var ideas []source.IdeaSource

	if cfg.Sources.RSS.Enabled {
		feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
		}
		ideas = append(ideas, source.NewRSSIdeas(feeds, filter, log.Named("rss")))
	}
	if cfg.Sources.Suggest.Enabled {
		ideas = append(ideas, source.NewSuggest(source.SuggestOptions{
			BaseURL:  cfg.Sources.Suggest.BaseURL,
			Seeds:    cfg.Sources.Suggest.Seeds,
			Country:  cfg.Sources.Suggest.Country,
			Language: cfg.Research.Language,
			Filter:   filter,
		}, log.Named("suggest")))
	}

	return ideas
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func (a *app) requireProducts() error {
	if a.products == nil {
		return errors.New("marketplace search is disabled (sources.amazon.enabled)")
	}
	return nil
}

func runNicheResearch(ctx context.Context, name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	kw, err := a.research.FetchData(ctx, name)
	if errors.Is(err, research.ErrAlreadyResearched) {
		fmt.Printf("niche %q already has data\n", niche.FormatName(name))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("recorded %q (keyword id %d)\n", kw.Keyword, kw.ID)
	return nil
}

func runNicheResearchFile(ctx context.Context, path string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.research.FetchFromList(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("researched %d niches from %s\n", n, path)
	return nil
}

func runImportReport(ctx context.Context, name, path string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	kw, err := a.research.ImportReport(ctx, name, path)
	if err != nil {
		return err
	}
	fmt.Printf("recorded %q (keyword id %d)\n", kw.Keyword, kw.ID)
	return nil
}

func runCommissions(ctx context.Context, force bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	updated, err := a.research.UpdateCommissionRates(ctx, force)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NICHE\tCOMMISSION")
	for _, n := range updated {
		fmt.Fprintf(w, "%s\t%.1f%%\n", n.Name, *n.AmazonCommissionRate)
	}
	return w.Flush()
}

func runNicheList(ctx context.Context, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	niches, err := a.niches.List(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(niches)
	}
	printNiches(niches)
	return nil
}

func runKeywordShow(ctx context.Context, kw string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	found, err := a.keywords.Find(ctx, kw, a.cfg.Research.Language, a.cfg.Research.LocID)
	if err != nil {
		return err
	}
	return printJSON(found)
}

func runProductsFetch(ctx context.Context, name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireProducts(); err != nil {
		return err
	}

	n, err := a.products.FetchForNiche(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("stored %d products for %q\n", n, niche.FormatName(name))
	return nil
}

func runProductsCandidates(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireProducts(); err != nil {
		return err
	}

	n, err := a.products.FetchForCandidates(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("fetched products for %d candidate niches\n", n)
	return nil
}

func runProductShow(ctx context.Context, asin string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.catalog.ByASIN(ctx, asin)
	if err != nil {
		return fmt.Errorf("product %s: %w", asin, err)
	}
	return printJSON(p)
}

func runCandidates(ctx context.Context, jsonOutput bool, minVolume, maxDA int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	limits := a.thresholds()
	if minVolume >= 0 {
		limits.MinVolume = minVolume
	}
	if maxDA >= 0 {
		limits.MaxDomainAuthority = maxDA
	}

	niches, err := a.engine.Candidates(ctx, limits.MinVolume, limits.MaxDomainAuthority)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(niches)
	}
	if len(niches) == 0 {
		fmt.Println("no candidates found (try researching niches first: affiliana niche research <niche>)")
		return nil
	}
	printNiches(niches)
	return nil
}

func runCandidateStats(ctx context.Context, name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.niches.ByName(ctx, niche.FormatName(name))
	if err != nil {
		return err
	}
	cs, err := a.engine.Statistics(ctx, *n)
	if err != nil {
		return err
	}
	return printJSON(cs)
}

func runSnapshot(ctx context.Context, output string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if output == "" {
		output = a.cfg.Export.Path
	}

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	res, err := a.snapshot.GenerateSnapshot(ctx, w)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "run %s: %d candidates, %d rows, %d new\n",
		res.RunID, len(res.Candidates), res.Rows, len(res.New))
	return nil
}

func runCollect(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	return a.snapshot.Collect(ctx)
}

func runServe(ctx context.Context, port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	return a.server(port).ListenAndServe(ctx)
}

func runDaemon(ctx context.Context, port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sched := scheduler.New(a.snapshot, a.cfg.Export.Path,
		a.cfg.Schedule.ParseCollectInterval(),
		a.cfg.Schedule.ParseSnapshotInterval(),
		a.log.Named("scheduler"),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.server(port).ListenAndServe(ctx)
	})

	err = g.Wait()
	a.log.Info("shutting down")
	return err
}

func (a *app) server(port int) *server.Server {
	if port == 0 {
		port = a.cfg.Server.Port
	}
	return server.New(a.niches, a.catalog, a.engine, a.thresholds(), a.cfg.Candidates.Workers, port, a.log.Named("server"))
}

func printNiches(niches []store.Niche) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNICHE\tCOMMISSION\tCREATED")
	for _, n := range niches {
		rate := "-"
		if n.AmazonCommissionRate != nil {
			rate = fmt.Sprintf("%.1f%%", *n.AmazonCommissionRate)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.ID, n.Name, rate, n.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
