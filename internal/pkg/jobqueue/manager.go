package jobqueue

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cloudnetiq/planport/internal/pkg/env"
)

// Manager manages the global job queue and the periodic ledger sweeps.
type Manager struct {
	queue        *Queue
	expiryTicker *time.Ticker
	alertTicker  *time.Ticker
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := env.GetEnvInt("JOBQUEUE_WORKERS", 3)

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the periodic sweeps.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	expiryInterval := env.GetEnvDuration("EXPIRY_SWEEP_INTERVAL", time.Hour)
	alertInterval := env.GetEnvDuration("EXPIRY_ALERT_INTERVAL", 6*time.Hour)

	m.expiryTicker = time.NewTicker(expiryInterval)
	m.wg.Add(1)
	go m.expirySweepWorker()

	m.alertTicker = time.NewTicker(alertInterval)
	m.wg.Add(1)
	go m.expiryAlertWorker()

	// Run the sweeps once at startup so a restart never delays them.
	m.enqueueSweep(JobTypeSubscriptionExpiry)
	m.enqueueSweep(JobTypeExpiryAlert)
	m.enqueueSweep(JobTypeBillingReminder)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.expiryTicker != nil {
		m.expiryTicker.Stop()
	}
	if m.alertTicker != nil {
		m.alertTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// expirySweepWorker periodically enqueues a ledger expiry sweep.
func (m *Manager) expirySweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Expiry sweep worker stopping")
			return
		case <-m.expiryTicker.C:
			m.enqueueSweep(JobTypeSubscriptionExpiry)
		}
	}
}

// expiryAlertWorker periodically enqueues the ending-soon alert scan.
func (m *Manager) expiryAlertWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Expiry alert worker stopping")
			return
		case <-m.alertTicker.C:
			m.enqueueSweep(JobTypeExpiryAlert)
			m.enqueueSweep(JobTypeBillingReminder)
		}
	}
}

func (m *Manager) enqueueSweep(jobType JobType) {
	if _, err := m.queue.EnqueueJob(jobType, map[string]interface{}{}); err != nil {
		log.Errorf("[JobQueue Manager] Failed to enqueue %s: %v", jobType, err)
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
