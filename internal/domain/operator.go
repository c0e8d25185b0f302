package domain

import (
	"time"

	"github.com/google/uuid"
)

// OperatorRole controls access levels in the backoffice admin surface. There
// is no end-user account concept in this hub: participants are identified
// purely by their settlement-service address, and authentication between a
// browser client and the hub is out of scope (§1). Only backoffice operators
// (admin/risk/finance/ops staff) hold accounts.
type OperatorRole string

const (
	OperatorAdmin    OperatorRole = "admin"
	OperatorRisk     OperatorRole = "risk"
	OperatorFinance  OperatorRole = "finance"
	OperatorOps      OperatorRole = "ops"
	OperatorReadOnly OperatorRole = "readonly"
)

// CanAccessBackoffice reports whether the role may reach any backoffice route.
func (r OperatorRole) CanAccessBackoffice() bool {
	switch r {
	case OperatorAdmin, OperatorRisk, OperatorFinance, OperatorOps, OperatorReadOnly:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role has full administrative access.
func (r OperatorRole) IsAdmin() bool {
	return r == OperatorAdmin
}

// Operator is a backoffice staff account.
type Operator struct {
	ID           uuid.UUID    `json:"id"         db:"id"`
	Email        string       `json:"email"      db:"email"`
	PasswordHash string       `json:"-"          db:"password_hash"`
	Role         OperatorRole `json:"role"       db:"role"`
	IsActive     bool         `json:"isActive"   db:"is_active"`
	CreatedAt    time.Time    `json:"createdAt"  db:"created_at"`
}
