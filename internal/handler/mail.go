package handler

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

// MailQueue 是 API 与 cmd/mail 之间约定的队列名称
const MailQueue = "email_queue"

// publishMail 把邮件序列化后投递到消息队列，由 cmd/mail 负责实际发送
func (h *Handler) publishMail(ctx context.Context, msg domain.MailMessage) error {
	mailData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	return h.mailChannel.PublishWithContext(
		ctx,
		"",
		MailQueue,
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        mailData,
		},
	)
}
