package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/edupulse/edupulse-api/internal/models"
)

// ConsoleSender logs deliveries instead of hitting a real transport. It
// stands in for email/SMS/push gateways in development.
type ConsoleSender struct {
	channel models.NotificationChannel
	logger  *zap.Logger
}

// NewConsoleSender builds a logging sender for one channel.
func NewConsoleSender(channel models.NotificationChannel, logger *zap.Logger) *ConsoleSender {
	return &ConsoleSender{channel: channel, logger: logger}
}

// Send implements Sender.
func (s *ConsoleSender) Send(_ context.Context, n *models.Notification, recipient *models.User) error {
	s.logger.Info("notification delivered",
		zap.String("channel", string(s.channel)),
		zap.String("notification_id", n.ID),
		zap.String("recipient", recipient.Email),
		zap.String("title", n.Title))
	return nil
}

// DefaultSenders wires a console sender for every external channel.
func DefaultSenders(logger *zap.Logger) map[models.NotificationChannel]Sender {
	return map[models.NotificationChannel]Sender{
		models.ChannelEmail: NewConsoleSender(models.ChannelEmail, logger),
		models.ChannelSMS:   NewConsoleSender(models.ChannelSMS, logger),
		models.ChannelPush:  NewConsoleSender(models.ChannelPush, logger),
	}
}
