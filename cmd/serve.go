package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"groundchat/config"
	"groundchat/internal/bot"
	"groundchat/internal/planner"
	"groundchat/internal/retrieval"
	"groundchat/internal/server"
	"groundchat/internal/state"
	"groundchat/internal/validate"
	"groundchat/provider"
	"groundchat/repository"
	"groundchat/telegram"
	"groundchat/tools/web_fetch"
	"groundchat/tools/web_search"
)

func serveCMD() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant: Telegram polling plus the ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			llmProvider, err := provider.NewProvider(provider.OpenAI, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.Timeout)
			if err != nil {
				return err
			}
			plannerModel := cfg.LLM.PlannerModel
			if plannerModel == "" {
				plannerModel = cfg.LLM.ChatModel
			}

			searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), web_search.Config{
				APIKey:  cfg.Search.APIKey,
				Timeout: cfg.Search.Timeout,
				Command: cfg.Search.MCPCommand,
				Args:    cfg.Search.MCPArgs,
			})
			if err != nil {
				return err
			}
			fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetch.Type), cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
			if err != nil {
				return err
			}

			store, err := buildStore(ctx, cfg)
			if err != nil {
				return err
			}

			stateMgr := state.New(store, llmProvider, cfg.LLM.ChatModel, cfg.Memory.RecentTurns)
			pl := planner.New(llmProvider, plannerModel, cfg.News.FollowupDefaultCount, cfg.News.MaxItems)
			orch := retrieval.New(searcher, fetcher, llmProvider, retrieval.Config{
				Country:      cfg.Search.Country,
				Lang:         cfg.Search.Lang,
				Count:        cfg.Search.Count,
				FetchTopN:    cfg.Fetch.TopN,
				SummaryModel: cfg.LLM.ChatModel,
			})
			val := validate.New(llmProvider, validate.Options{
				Model:       cfg.LLM.ChatModel,
				Temperature: 0.3,
				MaxTokens:   900,
			})
			b := bot.New(bot.Config{ChatModel: cfg.LLM.ChatModel}, pl, orch, val, llmProvider, stateMgr)

			go func() {
				if err := server.New(cfg.Server, stateMgr).Run(); err != nil {
					log.Printf("ops server stopped: %v", err)
				}
			}()

			if sweeper, ok := store.(repository.Sweeper); ok && cfg.Memory.SweepSpec != "" {
				go runSweepLoop(ctx, sweeper, cfg.Memory.SweepSpec)
			}

			tg := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.Handle, cfg.Telegram.PollTimeout)
			if err := tg.Run(ctx, b.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	return cmd
}

func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	storeCfg := repository.Config{
		Dir:           cfg.Memory.Dir,
		Mode:          cfg.Memory.Mode,
		Days:          cfg.Memory.Days,
		RedisHost:     cfg.Storage.Redis.Host,
		RedisPort:     cfg.Storage.Redis.Port,
		RedisPassword: cfg.Storage.Redis.Password,
		RedisDB:       cfg.Storage.Redis.DB,
		Timeout:       cfg.Storage.Redis.Timeout,
	}
	if repository.StoreType(cfg.Memory.Store) == repository.PostgresStoreType {
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		storeCfg.PostgresDSN = dsn
	}
	return repository.NewStore(ctx, repository.StoreType(cfg.Memory.Store), storeCfg)
}
