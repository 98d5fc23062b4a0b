package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/domain/repository"
	xhttp "Wonderland/pkg/http"
	"Wonderland/pkg/logger"
	"Wonderland/pkg/queue"
	"Wonderland/pkg/util"

	"github.com/google/uuid"
)

// MessageType is the queue type for operator notifications.
const MessageType = "notify.insight"

const channelTelegram = "telegram"

type Config struct {
	TelegramURL   string
	BotToken      string
	ChatID        string
	MaxMessageLen int
	Timeout       time.Duration
}

type Payload struct {
	Text string `json:"text"`
}

// Outbox queues notifications for the Telegram job.
type Outbox struct {
	publisher queue.Publisher
}

var _ repository.Notifier = (*Outbox)(nil)

func NewOutbox(publisher queue.Publisher) *Outbox {
	return &Outbox{publisher: publisher}
}

func (o *Outbox) Notify(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return o.publisher.PublishMessage(ctx, MessageType, Payload{Text: text})
}

// TelegramJob delivers queued notifications and journals each attempt.
type TelegramJob struct {
	cfg     Config
	http    *xhttp.Client
	journal repository.Journal
	logger  *logger.Logger
}

var _ queue.Job = (*TelegramJob)(nil)

func NewTelegramJob(cfg Config, journal repository.Journal, lgr *logger.Logger) *TelegramJob {
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = 4000
	}
	return &TelegramJob{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		journal: journal,
		logger:  lgr.With(logger.Component("notify")),
	}
}

func (j *TelegramJob) Name() string { return "telegram-notify" }
func (j *TelegramJob) Type() string { return MessageType }

func (j *TelegramJob) Handle(ctx context.Context, raw json.RawMessage) error {
	p, err := queue.Decode[Payload](raw)
	if err != nil {
		return err
	}
	text := util.Truncate(p.Text, j.cfg.MaxMessageLen)

	msg := &models.OutgoingMessage{
		ID:        uuid.NewString(),
		Channel:   channelTelegram,
		Content:   text,
		Timestamp: time.Now().UTC(),
	}

	var sendErr error
	switch {
	case j.cfg.BotToken == "" || j.cfg.ChatID == "":
		msg.Status = models.MessageSkipped
	default:
		sendErr = j.send(ctx, text)
		msg.Status = models.MessageSent
		if sendErr != nil {
			msg.Status = models.MessageFailed
		}
	}

	if err := j.journal.SaveMessage(ctx, msg); err != nil {
		j.logger.Error("save outgoing message", logger.String("id", msg.ID), logger.Error(err))
	}
	if sendErr != nil {
		return fmt.Errorf("telegram send: %w", sendErr)
	}
	j.logger.Info("notification handled", logger.String("id", msg.ID), logger.String("status", string(msg.Status)))
	return nil
}

func (j *TelegramJob) send(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(j.cfg.TelegramURL, "/"), j.cfg.BotToken)
	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	err := j.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    url,
		Body: map[string]string{
			"chat_id": j.cfg.ChatID,
			"text":    text,
		},
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("telegram: %s", resp.Description)
	}
	return nil
}
