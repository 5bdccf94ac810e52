package app

import (
	"log/slog"
	"time"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// Dependencies are the ports and settings the broadcast core is assembled from.
type Dependencies struct {
	Access    domain.AccessRepository
	Ledger    domain.LedgerRepository
	Delivery  domain.DeliveryRepository
	Transport domain.Transport
	Notifier  domain.OperatorNotifier
	Publisher domain.EventPublisher // optional
	Operators domain.Operators

	RetrievalCap      int
	FanoutConcurrency int
	TransportTimeout  time.Duration
	Logger            *slog.Logger
}

// Core bundles the components the dispatch layers drive.
type Core struct {
	Registry    *AccessRegistry
	Ledger      *PostLedger
	Tracker     *DeliveryTracker
	Coordinator *BroadcastCoordinator
	Gate        *RetrievalGate
	Status      *StatusReporter
	Alerts      *OperatorAlerts
}

func NewCore(d Dependencies) *Core {
	registry := NewAccessRegistry(d.Access, d.Operators, d.Logger)
	ledger := NewPostLedger(d.Ledger, d.Operators, d.Logger)
	tracker := NewDeliveryTracker(d.Delivery, d.Logger)
	alerts := NewOperatorAlerts(d.Notifier, d.TransportTimeout, d.Logger)
	return &Core{
		Registry: registry,
		Ledger:   ledger,
		Tracker:  tracker,
		Coordinator: NewBroadcastCoordinator(registry, ledger, d.Transport, d.Publisher,
			CoordinatorConfig{FanoutConcurrency: d.FanoutConcurrency, TransportTimeout: d.TransportTimeout}, d.Logger),
		Gate:   NewRetrievalGate(registry, ledger, tracker, alerts, d.Publisher, d.RetrievalCap, d.Logger),
		Status: NewStatusReporter(registry, ledger, tracker, d.Logger),
		Alerts: alerts,
	}
}
