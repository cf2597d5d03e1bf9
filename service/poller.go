package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const maintenanceBatchSize = 50

// MaintenancePoller periodically sweeps rooms with due timers. The engine is
// correct without it since every access runs maintenance first; the poller
// only bounds how long an untouched room can sit past its deadline.
type MaintenancePoller struct {
	rooms      RoomService
	uowFactory UnitOfWorkFactory
	clock      Clock
	interval   time.Duration
}

// NewMaintenancePoller creates a poller sweeping at the given interval
func NewMaintenancePoller(rooms RoomService, uowFactory UnitOfWorkFactory, clock Clock, interval time.Duration) *MaintenancePoller {
	return &MaintenancePoller{
		rooms:      rooms,
		uowFactory: uowFactory,
		clock:      clock,
		interval:   interval,
	}
}

// Start launches the background sweep goroutine.
// Returns a cleanup function to stop the worker gracefully.
func (p *MaintenancePoller) Start(ctx context.Context) func() {
	ticker := time.NewTicker(p.interval)
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", p.interval).Info("Maintenance poller started")

		// Run immediately on startup
		p.sweep(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("Maintenance poller shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Maintenance poller shutting down (stop requested)...")
				return
			case <-ticker.C:
				p.sweep(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}

// sweep runs maintenance on every room with an expired timer
func (p *MaintenancePoller) sweep(ctx context.Context) {
	uow := p.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.Errorf("Error beginning transaction for maintenance sweep: %v", err)
		return
	}

	due, err := uow.RoomRepository().ListRequiringMaintenance(ctx, p.clock.Now(), maintenanceBatchSize)
	uow.Rollback()
	if err != nil {
		log.Errorf("Error listing rooms requiring maintenance: %v", err)
		return
	}

	for _, room := range due {
		if _, err := p.rooms.EnsureMaintained(ctx, room.ID); err != nil {
			log.Errorf("Error maintaining room %d: %v", room.ID, err)
		}
	}
}
