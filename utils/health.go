package utils

import (
	"context"
	"sync"
	"time"
)

// HealthStatus represents current status of external collaborators.
type HealthStatus struct {
	Upstream  bool      `json:"upstream"`
	Transport bool      `json:"transport"`
	CheckedAt time.Time `json:"checkedAt"`
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// StartHealthMonitor performs periodic probes of the reservation API and the
// message transport and updates in-memory state.
func StartHealthMonitor(upstreamProbe, transportProbe func(ctx context.Context) error) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

			status := HealthStatus{CheckedAt: time.Now()}
			if upstreamProbe != nil {
				status.Upstream = upstreamProbe(ctx) == nil
			}
			if transportProbe != nil {
				status.Transport = transportProbe(ctx) == nil
			}
			cancel()

			mu.Lock()
			currentHealth = status
			mu.Unlock()
		}
	}()
}
