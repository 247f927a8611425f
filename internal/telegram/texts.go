package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lbrulet/PetTrainerNotificationBot/internal/domain"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/scheduler"
	"github.com/lbrulet/PetTrainerNotificationBot/internal/training"
)

const rentalCost = "140 FCOINS"

// UI texts
const (
	notAuthorizedText  = "❌ Sorry, you are not authorized to use this bot."
	genericErrorText   = "❌ Something went wrong. Please try again later."
	unknownCommandText = "🤔 Unknown command. Use /start to see what I can do."
	invalidButtonText  = "❌ Invalid button"
)

func welcomeText(p domain.Policy) string {
	var b strings.Builder
	b.WriteString("🎮 Welcome to Pet Training Bot!\n\n")
	if p.Accelerated {
		b.WriteString("🧪 TEST MODE ACTIVE - accelerated timers\n\n")
	}
	b.WriteString("I track your NPC trainers and ping you when training completes.\n\n")
	b.WriteString("📊 YOUR NPCs\n")
	for _, k := range domain.Kinds {
		fmt.Fprintf(&b, "• NPC %s → trains %s-level pets (%s)\n", k, k, domain.FormatDuration(p.SessionDuration(k)))
	}
	fmt.Fprintf(&b, "\n🏠 RENTAL\n• Cost: %s per NPC\n• Duration: %s\n• Rent an NPC before training!\n\n",
		rentalCost, rentalLabel(p))
	b.WriteString("⚡ QUICK START\n1️⃣ /rental_c\n2️⃣ /train_c\n3️⃣ Wait for the notification 🔔\n\n")
	b.WriteString("📝 COMMANDS\n" +
		"/train_c /train_b /train_a - Start training\n" +
		"/stop_c /stop_b /stop_a - Stop training\n" +
		"/rental_c /rental_b /rental_a - Rent an NPC\n" +
		"/status - View all your trainings\n" +
		"/testmode - Toggle test mode\n\n")
	b.WriteString("💡 Training is paused automatically when a rental expires.")
	return b.String()
}

func rentalLabel(p domain.Policy) string {
	if p.Accelerated {
		return domain.FormatDuration(p.RentalPeriod())
	}
	return fmt.Sprintf("%d days", domain.RentalDays)
}

func statusText(sums []training.Summary) string {
	var b strings.Builder
	b.WriteString("📊 Training Status\n\n")
	for _, s := range sums {
		rec := s.Record
		fmt.Fprintf(&b, "NPC %s:\n", rec.Kind)
		if s.RentalActive {
			fmt.Fprintf(&b, "• Rental: ✅ Active\n• Rental expires in: %s\n", s.RentalRemaining)
			switch {
			case s.NotEnoughTime:
				fmt.Fprintf(&b, "⚠️ Not enough time for training (needs %s minimum)\n", domain.FormatDuration(s.MinimumTime))
			case s.Estimate != nil:
				fmt.Fprintf(&b, "ℹ️ Can gain %d%% (%d cycles) before expiry\n", s.Estimate.Percent, s.Estimate.Cycles)
			}
		} else {
			b.WriteString("• Rental: ❌ Expired/Not set\n")
			if rec.RentalEnd != nil {
				fmt.Fprintf(&b, "• Rental expired: %s\n", domain.FormatDate(rec.RentalEnd))
			}
		}

		if rec.IsActive {
			b.WriteString("• Training: Active\n")
			if rec.EndTime != nil {
				fmt.Fprintf(&b, "• Training ends in: %s\n• Training end time: %s\n",
					s.SessionRemaining, domain.FormatDate(rec.EndTime))
			}
		} else {
			b.WriteString("• Training: Inactive\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func sessionStartedText(verb string, res training.StartResult, now time.Time) string {
	rec := res.Record
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Training %s for NPC %s!\n\n", verb, rec.Kind)
	fmt.Fprintf(&b, "• Duration: %s\n", domain.FormatDuration(time.Duration(rec.DurationHours*float64(time.Hour))))
	fmt.Fprintf(&b, "• Ends in: %s\n", domain.RemainingLabel(*rec.EndTime, now))
	fmt.Fprintf(&b, "• End time: %s\n", domain.FormatDate(rec.EndTime))
	if est := res.Interruption; est != nil {
		b.WriteString("\n⚠️ Note: NPC rental expires before training completes.\n")
		fmt.Fprintf(&b, "You will gain approximately %d%% (%d cycles) before expiration.\n", est.Percent, est.Cycles)
	}
	b.WriteString("\nI'll remind you when training is complete! 🎉")
	return b.String()
}

func sessionStoppedText(k domain.Kind) string {
	return fmt.Sprintf("⏹️ Training stopped for NPC %s.\nUse /train_%s to start a new session.", k, k.Lower())
}

func rentalSetText(rec domain.Record, p domain.Policy) string {
	return fmt.Sprintf("✅ NPC %s rental set!\n\n• Rental period: %s\n• Expires: %s\n• Cost: %s\n\nMake sure to renew before expiry! ⏰",
		rec.Kind, rentalLabel(p), domain.FormatDate(rec.RentalEnd), rentalCost)
}

func modeText(p domain.Policy) string {
	if p.Accelerated {
		return "🧪 TEST MODE ENABLED\n\n" +
			"Training durations:\n" + durationLines(p) +
			fmt.Sprintf("\nScheduler: checks every %s\nRental: %s\n\nUse /testmode again to disable.",
				domain.FormatDuration(p.TickPeriod()), rentalLabel(p))
	}
	return "✅ TEST MODE DISABLED\n\n" +
		"Back to normal durations:\n" + durationLines(p) +
		fmt.Sprintf("\nScheduler: checks every %s\nRental: %s",
			domain.FormatDuration(p.TickPeriod()), rentalLabel(p))
}

func durationLines(p domain.Policy) string {
	var b strings.Builder
	for _, k := range domain.Kinds {
		fmt.Fprintf(&b, "• NPC %s: %s\n", k, domain.FormatDuration(p.SessionDuration(k)))
	}
	return b.String()
}

// errorText maps engine errors to what the user should do next.
func errorText(err error, k domain.Kind) string {
	switch {
	case errors.Is(err, domain.ErrNotInitialized):
		return "❌ No training data found. Use /start first."
	case errors.Is(err, domain.ErrRentalInactive):
		return fmt.Sprintf("❌ NPC %s rental is not active.\nUse /rental_%s to rent it first.", k, k.Lower())
	case errors.Is(err, domain.ErrInsufficientRentalTime):
		return fmt.Sprintf("❌ Not enough rental time left on NPC %s to complete a single training cycle.\nRenew with /rental_%s.", k, k.Lower())
	case errors.Is(err, domain.ErrAcceleratedLocked):
		return "⚠️ Test mode cannot be enabled in production."
	default:
		return genericErrorText
	}
}

// notificationText renders a scheduler notification.
func notificationText(n scheduler.Notification) string {
	switch n.Type {
	case scheduler.RentalExpiryWarning:
		return fmt.Sprintf("⚠️ NPC %s rental expiring soon!\n\nTime remaining: %s\n\nUse /rental_%s to renew before it expires.",
			n.Kind, domain.FormatLeadTime(n.TimeLeft), n.Kind.Lower())
	case scheduler.RentalExpiredPause:
		return fmt.Sprintf("⏸️ Training paused for NPC %s\n\nReason: NPC rental has expired.\nUse /rental_%s to renew the rental.",
			n.Kind, n.Kind.Lower())
	case scheduler.SessionComplete:
		return fmt.Sprintf("🎉 Training finished for NPC %s!\n\nWhat would you like to do?", n.Kind)
	default:
		return ""
	}
}

var actionLabels = map[domain.Action]string{
	domain.ActionReset: "🔄 Reset training",
	domain.ActionStop:  "⏹️ Stop tracking",
}

// actionsKeyboard renders callbacks as a single row of inline buttons.
func actionsKeyboard(actions []domain.Callback) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(actionLabels[a.Action], a.String()))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
