package agenda

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/socialjuris/socialjuris-backend/pkg/models"
)

// DeadlineWindow is how far ahead the sweep looks for due commitments.
const DeadlineWindow = 48 * time.Hour

// SweepDeadlines warns lawyers about pending high-urgency items due within
// the window. Each item produces at most one warning; reruns are no-ops.
func (h *Handler) SweepDeadlines(ctx context.Context) error {
	now := time.Now()

	var due []models.AgendaItem
	if err := h.db.WithContext(ctx).
		Where("status = ? AND urgency = ? AND date > ? AND date <= ?",
			models.AgendaPending, "Alta", now, now.Add(DeadlineWindow)).
		Find(&due).Error; err != nil {
		return err
	}

	for _, item := range due {
		msg := fmt.Sprintf("O compromisso %q vence em breve.", item.Title)

		var cnt int64
		if err := h.db.WithContext(ctx).Model(&models.Notification{}).
			Where("user_id = ? AND title = ? AND message = ?", item.LawyerID, "Prazo Próximo!", msg).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			continue
		}
		h.notifier.Send(item.LawyerID, "Prazo Próximo!", msg, models.NotifyWarning)
	}
	return nil
}

// RunDeadlineSweeper loops the sweep until the context is cancelled.
func (h *Handler) RunDeadlineSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if err := h.SweepDeadlines(ctx); err != nil {
			log.Printf("agenda: deadline sweep: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
