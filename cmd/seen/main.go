// Command seen runs the Seen verification service: an HTTP API for
// geo-tagged media uploads plus CLI entry points for driving content
// verification directly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/christo725/seen/internal/config"
	"github.com/christo725/seen/internal/gemini"
	"github.com/christo725/seen/internal/groundtruth"
	"github.com/christo725/seen/internal/server"
	"github.com/christo725/seen/internal/store"
	"github.com/christo725/seen/internal/verify"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "seen",
	Short: "Seen - geo-tagged media uploads with AI content verification",
	Long: `Seen stores geo-tagged photo and video uploads and verifies their
descriptions against sunrise/sunset, weather, and location data using a
generative AI model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, verifier, err := buildPipeline()
		if err != nil {
			return err
		}
		srv := server.New(st, verifier, logger)
		return srv.Run(cfg.ListenAddr)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [upload-id]",
	Short: "Verify a single upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, verifier, err := buildPipeline()
		if err != nil {
			return err
		}
		result, err := verifier.VerifyUpload(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("status: %s\nverified: %v\n\n%s\n", result.Status, result.Verified, result.Text)
		return nil
	},
}

var verifyPendingCmd = &cobra.Command{
	Use:   "verify-pending",
	Short: "Verify all uploads still awaiting verification",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		_, verifier, err := buildPipeline()
		if err != nil {
			return err
		}
		outcomes, err := verifier.VerifyPending(context.Background(), limit)
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			if o.Err != nil {
				fmt.Printf("%s: FAILED: %v\n", o.UploadID, o.Err)
			} else {
				fmt.Printf("%s: %s\n", o.UploadID, o.Result.Status)
			}
		}
		fmt.Printf("processed %d upload(s)\n", len(outcomes))
		return nil
	},
}

func buildPipeline() (*store.Store, *verify.Verifier, error) {
	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, err
	}

	geminiCfg := gemini.DefaultConfig(cfg.Gemini.APIKey)
	if cfg.Gemini.BaseURL != "" {
		geminiCfg.BaseURL = cfg.Gemini.BaseURL
	}
	if cfg.Gemini.Model != "" {
		geminiCfg.Model = cfg.Gemini.Model
	}
	if cfg.Gemini.MaxOutputTokens > 0 {
		geminiCfg.MaxOutputTokens = cfg.Gemini.MaxOutputTokens
	}
	geminiCfg.Timeout = config.ParseDuration(cfg.Gemini.Timeout, geminiCfg.Timeout)
	geminiCfg.EnableWebSearch = cfg.Gemini.EnableWebSearch
	client := gemini.NewClient(geminiCfg, logger)

	gatherer := groundtruth.NewGatherer(cfg.Context, logger)
	verifier := verify.New(st, client, gatherer, cfg.Verification, logger)
	return st, verifier, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "seen.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	verifyPendingCmd.Flags().Int("limit", 0, "max uploads to verify (0 = configured batch limit)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(verifyPendingCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
