// Package cmd provides the command-line interface for sitemd.
// It handles command parsing, configuration loading, and crawl execution.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sitemd/sitemd/internal/config"
	"github.com/sitemd/sitemd/internal/crawler"
	"github.com/sitemd/sitemd/internal/logging"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitemd [URLs...]",
	Short: "Crawl a website and export its pages as Markdown",
	Long: `sitemd crawls a website starting from one or more seed URLs,
extracts the main content of each page, and exports it as Markdown
files with YAML front matter.

A manifest database records validators for every exported page, so
repeated runs with --incremental skip pages that have not changed.`,
	Args: cobra.ArbitraryArgs,
	RunE: runCrawl,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sitemd.yml)")

	// Configuration management flags
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")
	rootCmd.Flags().Bool("dry-run", false, "Run discovery only and print the URLs that would be crawled")

	// Crawl flags
	rootCmd.Flags().StringP("out", "o", "./export", "Output directory for exported Markdown")
	rootCmd.Flags().IntP("max-pages", "p", 1000, "Stop after N pages (0=unlimited)")
	rootCmd.Flags().IntP("max-depth", "d", 5, "Link traversal depth")
	rootCmd.Flags().IntP("concurrency", "c", 8, "Number of concurrent fetches")
	rootCmd.Flags().DurationP("timeout", "t", 20*time.Second, "HTTP request timeout")
	rootCmd.Flags().StringP("user-agent", "u", "sitemd/1.0 (+https://github.com/sitemd/sitemd)", "HTTP User-Agent header")
	rootCmd.Flags().Float64P("delay", "r", 0, "Delay between requests to the same host in seconds")
	rootCmd.Flags().Bool("respect-robots", true, "Honor robots.txt rules")
	rootCmd.Flags().Bool("strict-robots", false, "Treat robots.txt fetch errors as deny-all")

	// Scope flags
	rootCmd.Flags().Bool("allow-subdomains", false, "Treat subdomains of the seed domain as in-scope")
	rootCmd.Flags().StringSlice("include", []string{}, "Regex patterns URLs must match")
	rootCmd.Flags().StringSlice("exclude", []string{}, "Regex patterns that reject URLs")

	// Discovery flags
	rootCmd.Flags().Bool("sitemap-first", true, "Probe sitemaps before link traversal")
	rootCmd.Flags().Bool("bfs", true, "Discover pages by breadth-first link traversal")

	// Incremental and rendering flags
	rootCmd.Flags().BoolP("incremental", "i", false, "Skip pages whose validators match the manifest")
	rootCmd.Flags().Bool("render", false, "Render pages with a headless browser before extraction")
	rootCmd.Flags().String("render-wait-for", "", "CSS selector to wait for before capturing rendered HTML")
	rootCmd.Flags().Duration("render-timeout", 15*time.Second, "Per-page rendering timeout")

	// Logging flags
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-file", "", "Log file path (logs to stderr when empty)")

	// Bind flags to viper
	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"output.directory", "out"},
		{"limits.max_pages", "max-pages"},
		{"limits.max_depth", "max-depth"},
		{"fetch.concurrency", "concurrency"},
		{"fetch.timeout", "timeout"},
		{"fetch.user_agent", "user-agent"},
		{"fetch.delay_seconds", "delay"},
		{"fetch.respect_robots", "respect-robots"},
		{"fetch.strict_robots", "strict-robots"},
		{"scope.allow_subdomains", "allow-subdomains"},
		{"scope.include", "include"},
		{"scope.exclude", "exclude"},
		{"discovery.sitemap_first", "sitemap-first"},
		{"discovery.bfs_enabled", "bfs"},
		{"incremental.enabled", "incremental"},
		{"render.enabled", "render"},
		{"render.wait_for", "render-wait-for"},
		{"render.timeout", "render-timeout"},
		{"logging.level", "log-level"},
		{"logging.file", "log-file"},
	}

	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.Flags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("sitemd")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SITEMD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig builds the effective configuration from defaults, the config
// file, environment variables, and flags, in increasing priority.
func loadConfig(args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.StartURLs = args
	}
	return cfg, nil
}

func showCurrentConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: configuration validation failed: %v\n\n", err)
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Printf("# Current sitemd configuration\n")
	fmt.Printf("# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("# Configuration file search paths: ./sitemd.yml\n")
	fmt.Printf("# Environment variables prefix: SITEMD_\n\n")
	fmt.Print(string(yamlData))

	fmt.Printf("\n# Configuration source priority:\n")
	fmt.Printf("# 1. Command-line arguments (highest priority)\n")
	fmt.Printf("# 2. Environment variables (SITEMD_ prefix)\n")
	fmt.Printf("# 3. Configuration file (sitemd.yml)\n")
	fmt.Printf("# 4. Default values (lowest priority)\n")

	return nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.SetDefault(logging.FromConfig(cfg.Logging)); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	c, err := crawler.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		urls := c.Preview(ctx)
		fmt.Printf("Discovered %d URLs:\n", len(urls))
		for _, u := range urls {
			fmt.Println(u)
		}
		return nil
	}

	slog.Info("Crawl started", "seeds", cfg.StartURLs, "output", cfg.Output.Directory)

	stats, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	fmt.Printf("Crawl complete:\n")
	fmt.Printf("  Pages crawled: %d\n", stats.PagesCrawled)
	fmt.Printf("  Pages cached:  %d\n", stats.PagesCached)
	fmt.Printf("  Pages failed:  %d\n", stats.PagesFailed)
	fmt.Printf("  Pages skipped: %d\n", stats.PagesSkipped)
	fmt.Printf("  Assets seen:   %d\n", stats.AssetsSeen)
	fmt.Printf("  Output:        %s\n", cfg.Output.Directory)

	return nil
}
