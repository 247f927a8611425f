package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id, text string, alert bool) {
	cfg := tgbotapi.NewCallback(id, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(id, text)
	}
	if _, err := r.bot.Request(cfg); err != nil {
		r.log.Warn("answer callback failed", zap.Error(err))
	}
}

func (r *Router) editText(msg *tgbotapi.Message, text string) {
	if msg == nil {
		return
	}
	if _, err := r.bot.Send(tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, text)); err != nil {
		r.log.Warn("edit message failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

// logErr records unexpected failures; user-correctable errors are only debug noise.
func (r *Router) logErr(op string, userID int64, kind domain.Kind, err error) {
	var se *domain.StorageError
	if errors.As(err, &se) {
		r.log.Error(op+" failed", zap.Int64("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	r.log.Debug(op+" rejected", zap.Int64("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID, userID int64) {
	if err := r.svc.InitUser(ctx, userID); err != nil {
		r.logErr("init user", userID, "", err)
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	r.sendText(chatID, welcomeText(r.svc.Policy()))
}

func (r *Router) handleStatus(ctx context.Context, chatID, userID int64) {
	sums, err := r.svc.Status(ctx, userID, r.now())
	if err != nil {
		r.logErr("status", userID, "", err)
		r.sendText(chatID, errorText(err, ""))
		return
	}
	r.sendText(chatID, statusText(sums))
}

func (r *Router) handleTrain(ctx context.Context, chatID, userID int64, kind domain.Kind) {
	now := r.now()
	res, err := r.svc.StartSession(ctx, userID, kind, now)
	if err != nil {
		r.logErr("start session", userID, kind, err)
		r.sendText(chatID, errorText(err, kind))
		return
	}
	r.sendText(chatID, sessionStartedText("started", res, now))
}

func (r *Router) handleStop(ctx context.Context, chatID, userID int64, kind domain.Kind) {
	if err := r.svc.StopSession(ctx, userID, kind); err != nil {
		r.logErr("stop session", userID, kind, err)
		r.sendText(chatID, errorText(err, kind))
		return
	}
	r.sendText(chatID, sessionStoppedText(kind))
}

func (r *Router) handleRental(ctx context.Context, chatID, userID int64, kind domain.Kind) {
	rec, err := r.svc.SetRental(ctx, userID, kind, r.now())
	if err != nil {
		r.logErr("set rental", userID, kind, err)
		r.sendText(chatID, errorText(err, kind))
		return
	}
	r.sendText(chatID, rentalSetText(rec, r.svc.Policy()))
}

func (r *Router) handleTestMode(ctx context.Context, chatID int64) {
	p, err := r.modes.ToggleAccelerated(ctx)
	if err != nil {
		r.log.Warn("toggle accelerated mode refused", zap.Error(err))
		r.sendText(chatID, errorText(err, ""))
		return
	}
	r.sendText(chatID, modeText(p))
}

// --- Inline buttons ---

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	var userID int64
	if cb.From != nil {
		userID = cb.From.ID
	}
	if !r.allow.Allowed(userID) {
		r.answerCallback(cb.ID, "❌ Not authorized", true)
		return
	}

	c, err := domain.ParseCallback(cb.Data)
	if err != nil {
		r.log.Debug("callback rejected", zap.Int64("user_id", userID), zap.String("data", cb.Data), zap.Error(err))
		r.answerCallback(cb.ID, invalidButtonText, false)
		return
	}
	r.count("button_" + string(c.Action))

	switch c.Action {
	case domain.ActionReset:
		now := r.now()
		res, err := r.svc.StartSession(ctx, userID, c.Kind, now)
		if err != nil {
			r.logErr("reset session", userID, c.Kind, err)
			text := errorText(err, c.Kind)
			r.answerCallback(cb.ID, text, true)
			r.editText(cb.Message, text)
			return
		}
		r.editText(cb.Message, sessionStartedText("reset", res, now))
		r.answerCallback(cb.ID, "Training reset for NPC "+string(c.Kind), false)

	case domain.ActionStop:
		if err := r.svc.StopSession(ctx, userID, c.Kind); err != nil {
			r.logErr("stop session", userID, c.Kind, err)
			r.answerCallback(cb.ID, errorText(err, c.Kind), true)
			return
		}
		r.editText(cb.Message, sessionStoppedText(c.Kind))
		r.answerCallback(cb.ID, "Tracking stopped for NPC "+string(c.Kind), false)
	}
}
