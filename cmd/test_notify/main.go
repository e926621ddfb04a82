package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"plotledger_app/internal/config"
	"plotledger_app/internal/logger"
	"plotledger_app/internal/services"
)

func main() {
	phone := flag.String("phone", "", "Phone number or chat id (e.g. 9876543210 or 919876543210@c.us)")
	email := flag.String("email", "", "Send through SMTP to this address instead of WhatsApp")
	msg := flag.String("msg", "Test message from plotledger", "Message body")
	flag.Parse()

	if *phone == "" && *email == "" {
		logrus.Fatal("Please provide -phone or -email")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New("test_notify", cfg.LogLevel)

	if *email != "" {
		if !cfg.SMTPConfigured() {
			log.Fatal("SMTP is not configured")
		}
		if err := services.NewEmailService(cfg).SendEmail([]string{*email}, "Test notification", *msg); err != nil {
			log.WithError(err).Fatal("Failed to send email")
		}
		log.WithField("to", *email).Info("Email sent successfully")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chatID := services.NormalizeChatID(*phone)
	log.WithField("chat_id", chatID).Infof("Sending message: %s", *msg)

	if err := services.NewWahaService(cfg).SendMessage(ctx, chatID, *msg); err != nil {
		log.WithError(err).Fatal("Failed to send message")
	}

	log.Info("Message sent successfully!")
}
