package main

import (
	"github.com/joinguard/joinguard/bot"
	_ "github.com/joinguard/joinguard/bot/command_handler"
	"github.com/joinguard/joinguard/config"
	"github.com/joinguard/joinguard/db"
	"github.com/joinguard/joinguard/model"
	"github.com/joinguard/joinguard/pkg/log"
	"github.com/joinguard/joinguard/service"
	"github.com/joinguard/joinguard/webserver/router"
)

func main() {
	cfg := config.GetConfig()
	if cfg.BotToken == "" {
		log.Fatal("bot-token is required")
	}
	if cfg.ChatID == 0 {
		log.Fatal("chat-id is required")
	}
	admins := config.AdminIDList()
	if len(admins) == 0 {
		log.Fatal("at least one admin id is required")
	}

	store := service.NewStore(db.DB())
	b, err := bot.New(cfg.BotToken, cfg.ChatID, admins, nil)
	if err != nil {
		log.Fatal("bot: %v", err)
	}

	var eng *service.Engine
	timers := service.NewDeadlineTimer(func(key model.RecordKey) {
		if err := eng.OnTimeout(key); err != nil {
			log.Warn("timeout %v: %v", key, err)
		}
	})
	dispatcher := service.NewRetryDispatcher(b, b)
	eng = service.NewEngine(store, timers, service.MathChallengeGenerator{}, dispatcher, service.EngineConfig{
		MinAccountAgeDays:      cfg.MinAccountAgeDays,
		MaxCaptchaAttempts:     cfg.MaxCaptchaAttempts,
		HardCaptchaAttempts:    cfg.HardCaptchaAttempts,
		RiskScoreToHardCaptcha: cfg.RiskScoreToHardCaptcha,
		ChallengeTimeout:       config.ChallengeTimeoutDuration(),
	})
	b.Engine = eng
	b.Store = store

	timers.Start()
	// outstanding deadlines are re-derived from the store alone
	if err := eng.Recover(); err != nil {
		log.Fatal("recover pending verifications: %v", err)
	}
	GoBackgrounds(store, eng)
	go func() {
		if err := router.Run(store); err != nil {
			log.Fatal("webserver: %v", err)
		}
	}()
	log.Info("joinguard started, guarding chat %v", cfg.ChatID)
	b.Start()
}
