package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
// Group state is never stored; notifications are an append-only record of
// emitted decisions.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]*models.Notification, int, error)
}

// NotificationFilter narrows ListNotifications. Zero fields match everything;
// Page and Limit follow response.NewPaginationMeta.
type NotificationFilter struct {
	TenantID  uuid.UUID
	Signature string
	Severity  string
	Since     time.Time
	Page      int
	Limit     int
}
