package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"subsplit_app_echo/internal/config"
	"subsplit_app_echo/internal/logger"
	"subsplit_app_echo/internal/reminders"
	"subsplit_app_echo/internal/services"
)

func main() {
	phone := flag.String("phone", "", "Phone number (e.g. 3001234567 or 573001234567)")
	msg := flag.String("msg", "Mensaje de prueba desde Strimo", "Message body")
	memberID := flag.Uint("member", 0, "Send the pending-charges summary of this member instead of -msg")
	dryRun := flag.Bool("dry-run", false, "Print the message and wa.me link without sending")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.Options{ServiceName: "test-waha", Level: cfg.App.LogLevel, Format: "console"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	text := *msg
	target := *phone
	if *memberID != 0 {
		db, err := services.InitDB(cfg.DB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect database")
		}
		summary, err := reminders.LoadPendingSummary(ctx, db, *memberID)
		if err != nil {
			log.Fatal().Err(err).Uint("member_id", *memberID).Msg("loading pending charges")
		}
		text = reminders.WhatsAppMessage(*summary)
		if target == "" {
			target = summary.Member.Phone
		}
	}

	if target == "" {
		fmt.Println("Please provide a phone number using -phone or a member with a phone using -member")
		os.Exit(1)
	}

	if *dryRun {
		link, err := reminders.WhatsAppLink(target, text)
		if err != nil {
			log.Fatal().Err(err).Msg("building link")
		}
		fmt.Println(text)
		fmt.Println(link)
		return
	}

	chatID := services.NormalizeChatID(target)
	log.Info().Str("chat_id", chatID).Msg("sending message")

	if err := services.NewWahaService(cfg.Waha).SendMessage(ctx, chatID, text); err != nil {
		log.Fatal().Err(err).Msg("failed to send message")
	}
	log.Info().Msg("message sent successfully")
}
