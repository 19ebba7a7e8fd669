package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

var (
	historyWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ops_client_history_writes_total",
			Help: "Client history appends by action type and result",
		},
		[]string{"action_type", "result"},
	)
)

// ============================================
// History Ledger
// ============================================

// HistoryLedger is the append-only audit trail for clients.
type HistoryLedger interface {
	// Record never fails the caller: write errors are logged and counted.
	Record(ctx context.Context, clientID, actorID string, action types.HistoryAction, description string)
	// ListFor returns entries newest first, ties broken by insertion order.
	ListFor(ctx context.Context, clientID string) ([]*repository.ClientHistoryEntry, error)
}

type historyLedger struct {
	repo repository.ClientHistoryRepository
	log  *zap.Logger
}

func NewHistoryLedger(repo repository.ClientHistoryRepository, log *zap.Logger) HistoryLedger {
	return &historyLedger{repo: repo, log: log}
}

func (h *historyLedger) Record(ctx context.Context, clientID, actorID string, action types.HistoryAction, description string) {
	// The mutation already committed; a cancelled request must not drop its audit entry.
	ctx = context.WithoutCancel(ctx)

	err := h.append(ctx, &repository.ClientHistoryEntry{
		ClientID:    clientID,
		ActorID:     actorID,
		ActionType:  action,
		Description: description,
	})
	if err != nil {
		historyWritesTotal.WithLabelValues(string(action), "error").Inc()
		h.log.Error("client history write failed",
			zap.String("client_id", clientID),
			zap.String("actor_id", actorID),
			zap.String("action_type", string(action)),
			zap.Error(err),
		)
		return
	}
	historyWritesTotal.WithLabelValues(string(action), "ok").Inc()
}

func (h *historyLedger) append(ctx context.Context, entry *repository.ClientHistoryEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("history append panicked")
			h.log.Error("recovered panic in history append", zap.Any("panic", r))
		}
	}()
	return h.repo.Append(ctx, entry)
}

func (h *historyLedger) ListFor(ctx context.Context, clientID string) ([]*repository.ClientHistoryEntry, error) {
	entries, err := h.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, internal("list client history", err)
	}
	if entries == nil {
		entries = []*repository.ClientHistoryEntry{}
	}
	return entries, nil
}
