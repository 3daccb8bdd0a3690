package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/compact"
	"github.com/erg0nix/samtale/internal/config"
	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/history"
	"github.com/erg0nix/samtale/internal/journal"
	"github.com/erg0nix/samtale/internal/providers"
	"github.com/erg0nix/samtale/internal/session"
	"github.com/erg0nix/samtale/internal/tokens"
)

func execute() error {
	rootCmd := &cobra.Command{
		Use:   "samtale",
		Short: "budget-managed conversation sessions with crash-safe streaming",
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("session", "", "session id to reuse")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newRecoverCmd())
	rootCmd.AddCommand(newJournalCmd())
	rootCmd.AddCommand(newInitCmd())

	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}

	return config.LoadOrCreate(path)
}

// runtime bundles everything a command needs for one session.
type runtime struct {
	cfg     config.Config
	session core.SessionID
	log     *history.Log
	store   *journal.Store
	engine  *session.Engine
}

func openRuntime(cmd *cobra.Command, sink session.Sink) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	sessionID := core.SessionID("default")
	if flag, _ := cmd.Flags().GetString("session"); flag != "" {
		sessionID = core.SessionID(flag)
	}

	fileStore := history.NewFileStore(cfg.DataDir)
	log, err := fileStore.Open(sessionID)
	if err != nil {
		return nil, err
	}

	store, err := journal.Open(filepath.Join(cfg.DataDir, "journal.db"))
	if err != nil {
		return nil, err
	}

	provider := providers.NewOpenAIProvider(providers.OpenAIConfig{
		Endpoint:  cfg.Endpoint,
		APIKeyEnv: cfg.APIKeyEnv,
	}, cfg.Debug)

	registry := tokens.NewRegistry()
	if cfg.Models.ContextWindow > 0 {
		registry.Override(cfg.Models.Chat, tokens.ModelLimits{
			ContextWindow: cfg.Models.ContextWindow,
			MaxOutput:     cfg.Models.MaxOutput,
		})
	}

	resolved := registry.Resolve(cfg.Models.Chat)
	if resolved.Source == tokens.SourceDefaultFallback {
		slog.Warn("unknown model, using conservative default limits", "model", cfg.Models.Chat)
	}

	engine := session.NewEngine(session.Params{
		Log:       log,
		Journal:   store,
		Provider:  provider,
		Compactor: compact.NewCompactor(provider, cfg.Models.Summary),
		Sink:      sink,
		ChatModel: cfg.Models.Chat,
		Budget:    resolved.Limits.EffectiveInputBudget(),
		Retry:     cfg.Retry,
	})

	return &runtime{cfg: cfg, session: sessionID, log: log, store: store, engine: engine}, nil
}

func (r *runtime) close() {
	_ = r.store.Close()
}
