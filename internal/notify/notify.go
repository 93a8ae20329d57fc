package notify

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
)

// Notifier creates notification rows as mutation side effects and pushes the
// matching change event to the target user. Writes are best-effort: a failed
// notification never fails the mutation that triggered it.
type Notifier struct {
	db  *gorm.DB
	hub *stream.Hub
}

func New(db *gorm.DB, hub *stream.Hub) *Notifier {
	return &Notifier{db: db, hub: hub}
}

func (n *Notifier) Send(userID uuid.UUID, title, message string, typ models.NotificationType) {
	publish := n.SendTx(n.db, userID, title, message, typ)
	publish()
}

// SendTx inserts the notification row on the given handle and returns the
// publish step separately. Callers inside a transaction pass tx and invoke
// the returned function only after the transaction commits, so subscribers
// never see an event for a row that was rolled back.
func (n *Notifier) SendTx(tx *gorm.DB, userID uuid.UUID, title, message string, typ models.NotificationType) func() {
	rec := models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
	}
	if err := tx.Create(&rec).Error; err != nil {
		return func() {}
	}
	return func() {
		n.hub.Publish(stream.Event{
			Table:  "notifications",
			Action: stream.ActionInsert,
			ID:     rec.ID.String(),
		}, userID)
	}
}
