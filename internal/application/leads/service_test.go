package leads

import (
	"context"
	"errors"
	"testing"

	"leadmarket-backend/internal/application/notifications"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/pkg/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLeads(t *testing.T) (*Service, *gorm.DB) {
	db := testdb.Open(t)
	return &Service{DB: db, Tx: testdb.Runner(db), Notifier: &notifications.Dispatcher{DB: db}}, db
}

func TestCancelLead_OpenAndNew(t *testing.T) {
	for _, status := range []domain.LeadStatus{domain.LeadStatusOpen, domain.LeadStatusNew} {
		t.Run(string(status), func(t *testing.T) {
			s, db := setupLeads(t)
			customer := testdb.User(t, db, "owner@example.test", "customer")
			lead := testdb.Lead(t, db, customer.UserID, status)

			got, err := s.CancelLead(context.Background(), lead.LeadID, customer.UserID)
			require.NoError(t, err)
			assert.Equal(t, domain.LeadStatusCancelledByCustomer, got.Status)
			assert.Equal(t, lead.Version+1, got.Version)

			stored, err := s.GetLead(context.Background(), lead.LeadID, customer.UserID)
			require.NoError(t, err)
			assert.Equal(t, domain.LeadStatusCancelledByCustomer, stored.Status)

			var n int64
			require.NoError(t, db.Model(&domain.OutboxEvent{}).Where("event_type = ?", domain.EventLeadCancelled).Count(&n).Error)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestCancelLead_ClaimedLeadKeepsAssignment(t *testing.T) {
	s, db := setupLeads(t)
	customer := uuid.New()
	lead := testdb.Lead(t, db, customer, domain.LeadStatusClaimed)
	acct := testdb.Contractor(t, db, domain.ContractorApproved, 0)
	require.NoError(t, db.Create(&domain.Assignment{LeadID: lead.LeadID, ContractorID: acct.ContractorID}).Error)

	_, err := s.CancelLead(context.Background(), lead.LeadID, customer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidStateTransition))

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "contact_support", de.Details["action"])
	assert.Contains(t, de.Message, "contact support")

	stored, err := s.GetLead(context.Background(), lead.LeadID, customer)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusClaimed, stored.Status)

	var assignment domain.Assignment
	require.NoError(t, db.Where("lead_id = ?", lead.LeadID).First(&assignment).Error)
	assert.Equal(t, domain.AssignmentClaimed, assignment.Status)
}

func TestCancelLead_OtherTerminalStates(t *testing.T) {
	for _, status := range []domain.LeadStatus{
		domain.LeadStatusInProgress,
		domain.LeadStatusCompleted,
		domain.LeadStatusCancelledByCustomer,
	} {
		t.Run(string(status), func(t *testing.T) {
			s, db := setupLeads(t)
			customer := uuid.New()
			lead := testdb.Lead(t, db, customer, status)

			_, err := s.CancelLead(context.Background(), lead.LeadID, customer)
			assert.Equal(t, domain.KindInvalidStateTransition, domain.KindOf(err))
		})
	}
}

func TestCancelLead_WrongCustomerIsNotFound(t *testing.T) {
	s, db := setupLeads(t)
	owner := uuid.New()
	lead := testdb.Lead(t, db, owner, domain.LeadStatusOpen)

	_, err := s.CancelLead(context.Background(), lead.LeadID, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrLeadNotFound))

	stored, err := s.GetLead(context.Background(), lead.LeadID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusOpen, stored.Status)
}

func TestCancelLead_Missing(t *testing.T) {
	s, _ := setupLeads(t)
	_, err := s.CancelLead(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestGetLead_Missing(t *testing.T) {
	s, _ := setupLeads(t)
	_, err := s.GetLead(context.Background(), uuid.New(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetLead_OnlyOwnerSeesLead(t *testing.T) {
	s, db := setupLeads(t)
	owner := uuid.New()
	lead := testdb.Lead(t, db, owner, domain.LeadStatusOpen)

	got, err := s.GetLead(context.Background(), lead.LeadID, owner)
	require.NoError(t, err)
	assert.Equal(t, lead.Title, got.Title)

	_, err = s.GetLead(context.Background(), lead.LeadID, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrLeadNotFound))
}
