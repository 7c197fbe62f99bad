package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StageScreener/internal/metrics"
	"StageScreener/internal/notifier"
	"StageScreener/internal/scheduler"
)

func serveCmd(a *app) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run on the daily schedule, answer Telegram commands and expose /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateTelegram(); err != nil {
				return err
			}
			ctx := cmd.Context()

			rec, err := a.openRecorder()
			if err != nil {
				return err
			}
			defer rec.Close()

			reg := metrics.New()
			go func() {
				if err := reg.Serve(ctx, a.cfg.Metrics.Addr); err != nil {
					log.Error().Err(err).Msg("metrics server stopped")
				}
			}()

			svc := a.newService(rec, reg)
			tn := notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy)

			sched := scheduler.NewScheduler(ctx, svc, tn, rec, a.cfg.Pipeline.Frequency, a.cfg.Pipeline.TopN)
			if err := sched.RegisterAll(a.cfg.Schedule.DailyCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			go tn.StartPolling(ctx, sched.HandleCommand)
			log.Info().Msg("telegram polling started")

			if runOnStart || os.Getenv("RUN_ON_START") == "true" {
				log.Info().Msg("run on start enabled, screening now")
				go sched.RunNow()
			}

			log.Info().Str("cron", a.cfg.Schedule.DailyCron).Msg("screener is running, press Ctrl+C to stop")
			<-ctx.Done()
			log.Info().Msg("shutdown signal received, stopping")
			return nil
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "screen once immediately")
	return cmd
}
