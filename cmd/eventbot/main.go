package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/eventbot/internal/profile"
	"github.com/hrygo/eventbot/internal/version"
	"github.com/hrygo/eventbot/plugin/telegram"
	"github.com/hrygo/eventbot/server/chat"
	"github.com/hrygo/eventbot/store"
	"github.com/hrygo/eventbot/store/db"
)

const greetingBanner = `Event tracking bot, version %s`

var rootCmd = &cobra.Command{
	Use:   "eventbot",
	Short: "A Telegram bot for tracking personal events with file attachments",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		instanceProfile := &profile.Profile{
			Mode:          viper.GetString("mode"),
			Data:          viper.GetString("data"),
			Driver:        viper.GetString("driver"),
			DSN:           viper.GetString("dsn"),
			TelegramToken: viper.GetString("telegram-token"),
			PageSize:      viper.GetInt("page-size"),
			SessionTTL:    viper.GetDuration("session-ttl"),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", slog.String("error", err.Error()))
			os.Exit(1)
		}
		instanceProfile.Version = version.GetCurrentVersion(instanceProfile.Mode)

		if instanceProfile.TelegramToken == "" {
			slog.Error("no telegram token configured, set EVENTBOT_TELEGRAM_TOKEN")
			os.Exit(1)
		}

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", slog.String("error", err.Error()))
			os.Exit(1)
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		defer storeInstance.Close()
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}

		sessions := chat.NewManager(instanceProfile.SessionTTL)
		defer sessions.Close()

		bot, err := telegram.NewBot(instanceProfile.TelegramToken)
		if err != nil {
			slog.Error("failed to start telegram bot", slog.String("error", err.Error()))
			os.Exit(1)
		}
		engine := chat.NewEngine(storeInstance, bot, sessions, instanceProfile.PageSize)

		fmt.Printf(greetingBanner+"\n", instanceProfile.Version)
		slog.Info("bot started",
			slog.String("mode", instanceProfile.Mode),
			slog.String("driver", instanceProfile.Driver),
			slog.Int("page_size", instanceProfile.PageSize),
			slog.Duration("session_ttl", instanceProfile.SessionTTL))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return bot.Run(ctx, engine)
		})
		g.Go(func() error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				slog.Info("shutting down", slog.String("signal", sig.String()))
				cancel()
			case <-ctx.Done():
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			slog.Error("bot stopped with error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	},
}

func init() {
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the bot, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("telegram-token", "", "telegram bot API token")
	rootCmd.PersistentFlags().Int("page-size", 5, "events per list page")
	rootCmd.PersistentFlags().Duration("session-ttl", 30*time.Minute, "idle conversation session lifetime")

	for _, flag := range []string{"mode", "data", "driver", "dsn", "telegram-token", "page-size", "session-ttl"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("eventbot")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
