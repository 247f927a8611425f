package telegram

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/metrics"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/scheduler"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/training"
)

// BotAPI is the part of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ModeSwitcher flips accelerated mode and restarts the scheduler.
type ModeSwitcher interface {
	ToggleAccelerated(ctx context.Context) (domain.Policy, error)
}

// Router wires Telegram updates to the training service.
type Router struct {
	bot     BotAPI
	log     *zap.Logger
	svc     *training.Service
	modes   ModeSwitcher
	allow   domain.AllowList
	metrics *metrics.Metrics
	now     func() time.Time
}

var _ scheduler.Notifier = (*Router)(nil)

// NewRouter creates a new Telegram router.
func NewRouter(bot BotAPI, log *zap.Logger, svc *training.Service, modes ModeSwitcher, allow domain.AllowList, m *metrics.Metrics) *Router {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Router{
		bot:     bot,
		log:     log,
		svc:     svc,
		modes:   modes,
		allow:   allow,
		metrics: m,
		now:     time.Now,
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		r.handleMessage(ctx, upd.Message)
		return
	}
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	chatID := msg.Chat.ID
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	name := commandName(text)
	r.log.Debug("command received",
		zap.Int64("user_id", userID),
		zap.String("command", name),
		zap.Bool("authorized", r.allow.Allowed(userID)),
	)
	if !r.allow.Allowed(userID) {
		r.sendText(chatID, notAuthorizedText)
		return
	}

	switch name {
	case "start":
		r.count(name)
		r.handleStart(ctx, chatID, userID)
	case "status":
		r.count(name)
		r.handleStatus(ctx, chatID, userID)
	case "testmode":
		r.count(name)
		r.handleTestMode(ctx, chatID)
	default:
		verb, kind, err := domain.ParseKindCommand(text)
		if err != nil {
			r.sendText(chatID, unknownCommandText)
			return
		}
		r.count(verb)
		switch verb {
		case "train":
			r.handleTrain(ctx, chatID, userID, kind)
		case "stop":
			r.handleStop(ctx, chatID, userID, kind)
		case "rental":
			r.handleRental(ctx, chatID, userID, kind)
		default:
			r.sendText(chatID, unknownCommandText)
		}
	}
}

func (r *Router) count(command string) {
	r.metrics.Commands.WithLabelValues(command).Inc()
}

// commandName returns "train_c" for "/train_c@bot args".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

// Notify sends a scheduler notification to the user's private chat.
// This makes Router satisfy scheduler.Notifier.
// It returns ctx.Err() once ctx is done, even if the send is still in flight.
func (r *Router) Notify(ctx context.Context, n scheduler.Notification) error {
	msg := tgbotapi.NewMessage(n.UserID, notificationText(n))
	if len(n.Actions) > 0 {
		msg.ReplyMarkup = actionsKeyboard(n.Actions)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := r.bot.Send(msg)
		errc <- err
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
