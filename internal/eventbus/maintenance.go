package eventbus

import (
	"time"

	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
)

// startMaintenance launches the two background tickers §4.2 requires: an
// hourly idle-client sweep and a five-minute health probe. Grounded on the
// teacher's heartbeatLoop convention in
// runtime/providers/internal/streaming/conn.go (ticker + stop-channel
// select), generalized from a single heartbeat to two independent cadences.
func (b *Bus) startMaintenance() {
	b.wg.Add(2)
	go b.cleanupLoop()
	go b.healthProbeLoop()
}

func (b *Bus) cleanupLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.sweepIdleClients()
		}
	}
}

func (b *Bus) sweepIdleClients() {
	threshold := time.Now().Add(-idleClientTTL)

	b.mu.Lock()
	var idle []string
	for id, client := range b.clients {
		if client.LastActivity.Before(threshold) {
			idle = append(idle, id)
		}
	}

	removedSubs := 0
	for _, id := range idle {
		for subID := range b.byClient[id] {
			if sub, ok := b.subscriptions[subID]; ok {
				b.unwatchIfOrphaned(sub.ResourcePath)
			}
			delete(b.subscriptions, subID)
			removedSubs++
		}
		delete(b.byClient, id)
		delete(b.clients, id)
		if q, ok := b.queues[id]; ok {
			q.close()
			delete(b.queues, id)
		}
	}
	b.mu.Unlock()

	if len(idle) > 0 {
		logger.Info("eventbus: cleaned up idle clients", "clients", len(idle), "subscriptions", removedSubs)
	}
}

func (b *Bus) healthProbeLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.mu.RLock()
			clientCount := len(b.clients)
			subCount := len(b.subscriptions)
			b.mu.RUnlock()
			logger.Debug("eventbus: health probe", "clients", clientCount, "subscriptions", subCount)
		}
	}
}
