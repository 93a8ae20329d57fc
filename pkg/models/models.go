package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleLawyer Role = "LAWYER"
	RoleAdmin  Role = "ADMIN"
)

// CaseStatus defines lifecycle states for a case.
// Transitions are forward-only: OPEN -> ACTIVE -> CLOSED.
type CaseStatus string

const (
	CaseOpen   CaseStatus = "OPEN"
	CaseActive CaseStatus = "ACTIVE"
	CaseClosed CaseStatus = "CLOSED"
)

// MessageType discriminates chat message kinds.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// NotificationType classifies notifications for the UI.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
)

// AgendaStatus marks an agenda item as pending or done.
type AgendaStatus string

const (
	AgendaPending AgendaStatus = "PENDING"
	AgendaDone    AgendaStatus = "DONE"
)

/* =============================== Entities =============================== */

// User represents a client, lawyer, or administrator profile.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`

	// Lawyer-only fields
	OAB         string `json:"oab,omitempty"`
	Specialties string `json:"specialties,omitempty"`
	Balance     int    `gorm:"not null;default:0" json:"balance"`
	Verified    bool   `gorm:"not null;default:false" json:"verified"`
	IsPremium   bool   `gorm:"not null;default:false" json:"is_premium"`

	Phone          string    `json:"phone,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	EmailConfirmed bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Case represents a legal matter published by a client.
type Case struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	LawyerID    *uuid.UUID `gorm:"type:uuid;index" json:"lawyer_id,omitempty"` // set only on OPEN -> ACTIVE
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Area        string     `gorm:"not null" json:"area"`
	Status      CaseStatus `gorm:"type:varchar(20);default:'OPEN'" json:"status"`
	City        string     `json:"city"`
	UF          string     `gorm:"type:varchar(2)" json:"uf"`
	Price       float64    `gorm:"type:numeric(10,2)" json:"price"`
	Complexity  string     `gorm:"type:varchar(10)" json:"complexity"` // Baixa | Média | Alta
	IsPaid      bool       `gorm:"not null;default:false" json:"is_paid"`

	FeedbackRating  *int   `json:"feedback_rating,omitempty"`
	FeedbackComment string `json:"feedback_comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Messages  []Message      `json:"messages"`
	Interests []CaseInterest `json:"-"`
}

// CaseInterest is a lawyer's paid, non-binding signal on an OPEN case.
// The (case_id, lawyer_id) pair is unique: one interest per lawyer per case.
type CaseInterest struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID    uuid.UUID `gorm:"type:uuid;not null;index:idx_case_lawyer_interest,unique" json:"case_id"`
	LawyerID  uuid.UUID `gorm:"type:uuid;not null;index:idx_case_lawyer_interest,unique" json:"lawyer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is an append-only chat entry on a case.
type Message struct {
	ID        uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"case_id"`
	SenderID  uuid.UUID   `gorm:"type:uuid;not null" json:"sender_id"`
	Content   string      `gorm:"not null" json:"content"`
	Type      MessageType `gorm:"type:varchar(10);default:'text'" json:"type"`
	FileURL   string      `json:"file_url,omitempty"`
	Timestamp time.Time   `gorm:"autoCreateTime" json:"timestamp"`
}

// Notification is created only as a mutation side effect; only the read
// flag is mutable afterwards.
type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `gorm:"type:varchar(10);default:'info'" json:"type"`
	Read      bool             `gorm:"not null;default:false" json:"read"`
	Timestamp time.Time        `gorm:"autoCreateTime" json:"timestamp"`
}

// CRMClient is a lawyer-owned contact/KYC record, distinct from the
// platform's own client role. Never shared between lawyers.
type CRMClient struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LawyerID    uuid.UUID `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	Name        string    `gorm:"not null" json:"name"`
	Type        string    `gorm:"type:varchar(2);not null" json:"type"` // PF | PJ
	CPFCNPJ     string    `gorm:"column:cpf_cnpj" json:"cpf_cnpj,omitempty"`
	RG          string    `json:"rg,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Profession  string    `json:"profession,omitempty"`
	CivilStatus string    `json:"civil_status,omitempty"`
	RiskScore   string    `gorm:"type:varchar(10);default:'Baixo'" json:"risk_score"` // Baixo | Médio | Alto
	Status      string    `gorm:"type:varchar(15);default:'Prospecção'" json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document is a lawyer-owned document record, optionally linked to a CRM client.
type Document struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LawyerID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	ClientID  *uuid.UUID `gorm:"type:uuid" json:"client_id,omitempty"`
	Name      string     `gorm:"not null" json:"name"`
	Type      string     `gorm:"type:varchar(20)" json:"type"` // Peticao | Contrato | Sentenca | Procuracao | Outros
	Tags      string     `json:"tags"`                         // comma-separated
	Version   int        `gorm:"not null;default:1" json:"version"`
	Size      string     `json:"size"`
	Key       string     `json:"-"` // storage object key
	URL       string     `json:"url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// AgendaItem is a lawyer's scheduled commitment.
type AgendaItem struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LawyerID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	Title       string       `gorm:"not null" json:"title"`
	Description string       `json:"description,omitempty"`
	Date        time.Time    `gorm:"not null" json:"date"`
	Type        string       `gorm:"type:varchar(15);not null" json:"type"`    // Judicial | Administrativo | Interno | Diligencia
	Urgency     string       `gorm:"type:varchar(10);not null" json:"urgency"` // Alta | Média | Baixa
	ClientID    *uuid.UUID   `gorm:"type:uuid" json:"client_id,omitempty"`
	Status      AgendaStatus `gorm:"type:varchar(10);default:'PENDING'" json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SavedCalculation stores one run of a legal calculator with its opaque
// input and result payloads.
type SavedCalculation struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LawyerID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	Category   string         `gorm:"not null" json:"category"`
	Type       string         `gorm:"not null" json:"type"`
	Title      string         `json:"title"`
	InputData  datatypes.JSON `json:"input_data"`
	ResultData datatypes.JSON `json:"result_data"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CreditTopUp records a credit purchase. Reference carries the external
// payment id when the caller provides one; the unique index makes retried
// top-ups with the same reference idempotent.
type CreditTopUp struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LawyerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	Amount    int       `gorm:"not null" json:"amount"`
	Reference *string   `gorm:"uniqueIndex:ux_topup_reference" json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
