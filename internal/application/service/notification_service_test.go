package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

type sentMessage struct {
	receiveID string
	text      string
}

type mockSender struct {
	sent []sentMessage
	err  error
}

func (m *mockSender) SendText(ctx context.Context, receiveID string, text string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{receiveID: receiveID, text: text})
	return nil
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		evt  *event.Event
		want string
	}{
		{
			name: "created",
			evt: &event.Event{
				Type:           event.TypeDocumentCreated,
				DocumentType:   entity.DocumentPaymentOrder,
				DocumentNumber: 1001,
				ActorID:        "u-req",
				ToStage:        domainwf.StagePending,
			},
			want: "PAYMENT_ORDER #1001 created by u-req, waiting at PENDING",
		},
		{
			name: "final approval",
			evt: &event.Event{
				Type:           event.TypeDocumentApproved,
				DocumentType:   entity.DocumentPaymentOrder,
				DocumentNumber: 1001,
				Action:         entity.ActionApprove,
				ActorID:        "ceo",
				ActorRole:      entity.RoleCEO,
				FromStage:      domainwf.StageApprovedManager,
				ToStage:        domainwf.StageApprovedCEO,
				Terminal:       true,
			},
			want: "PAYMENT_ORDER #1001: APPROVE by ceo (CEO), APPROVED_MANAGER -> APPROVED_CEO [final]",
		},
		{
			name: "rejection with note",
			evt: &event.Event{
				Type:           event.TypeDocumentRejected,
				DocumentType:   entity.DocumentExitPermit,
				DocumentNumber: 7,
				Action:         entity.ActionReject,
				ActorID:        "fin",
				ActorRole:      entity.RoleFinance,
				FromStage:      "PENDING_SALES",
				ToStage:        domainwf.StageRejected,
				Terminal:       true,
				Note:           "wrong plate",
			},
			want: "EXIT_PERMIT #7: REJECT by fin (FINANCE), PENDING_SALES -> REJECTED [final]\nNote: wrong plate",
		},
		{
			name: "trade archived",
			evt:  &event.Event{Type: event.TypeTradeArchived, DocumentID: "t-1", ActorID: "fin"},
			want: "Trade record t-1 archived by fin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEvent(tt.evt))
		})
	}
}

func TestNotificationService_HandleEvent(t *testing.T) {
	sender := &mockSender{}
	svc := NewNotificationService(sender, "oc_chat", nopLogger{})

	err := svc.HandleEvent(context.Background(), &event.Event{
		Type:    event.TypeTradeUnarchived,
		ID:      "e-1",
		ActorID: "fin",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "oc_chat", sender.sent[0].receiveID)
	assert.Contains(t, sender.sent[0].text, "restored by fin")
}

func TestNotificationService_SendFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("lark unavailable")}
	svc := NewNotificationService(sender, "oc_chat", nopLogger{})

	err := svc.HandleEvent(context.Background(), &event.Event{Type: event.TypeDocumentCreated, ID: "e-2"})
	assert.Error(t, err)
}
