package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/leave-intake/internal/core/domain"
)

// LogNotifier stands in for a messaging gateway: it records the replacement
// message in the structured log instead of sending it.
type LogNotifier struct {
	recipient string
	logger    *slog.Logger
}

func NewLogNotifier(recipient string, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{recipient: recipient, logger: logger}
}

func (n *LogNotifier) NotifyReplacement(ctx context.Context, record domain.ConfirmedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.recipient == "" {
		return domain.WrapError(domain.ErrInvalidInput, "notify replacement", fmt.Errorf("no recipient configured"))
	}
	n.logger.Info("replacement_notification_sent",
		"channel", "whatsapp_mock",
		"recipient", n.recipient,
		"license_id", record.ID,
		"message", ReplacementMessage(record),
	)
	return nil
}

func ReplacementMessage(record domain.ConfirmedRecord) string {
	name := record.ProfessionalName
	if name == "" {
		name = "Un profesor"
	}
	return fmt.Sprintf(
		"%s presentó licencia médica del %s al %s (%d días). Se requiere reemplazo.",
		name, orDash(record.StartDate), orDash(record.EndDate), record.RestDays,
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
