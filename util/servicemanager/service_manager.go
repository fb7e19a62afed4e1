// Package servicemanager starts services in registration order, waits for them and
// stops them in reverse order when one fails or the process is signalled.
package servicemanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/ulogger"
	"golang.org/x/sync/errgroup"
)

type serviceWrapper struct {
	name     string
	instance Service
	index    int
	readyCh  chan struct{}
}

// ServiceManager runs a set of services on one errgroup. The first service to fail
// cancels Ctx for all the others.
type ServiceManager struct {
	services              []serviceWrapper
	dependencyChannelsMux sync.Mutex
	dependencyChannels    []chan bool
	listenersMu           sync.RWMutex
	listeners             []string
	logger                ulogger.Logger
	Ctx                   context.Context
	cancelFunc            context.CancelFunc
	g                     *errgroup.Group
	startTimeout          time.Duration
	stopTimeout           time.Duration
}

// NewServiceManager creates a manager whose context is cancelled on SIGINT or SIGTERM.
func NewServiceManager(ctx context.Context, logger ulogger.Logger) *ServiceManager {
	ctx, cancelFunc := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	sm := &ServiceManager{
		services:     make([]serviceWrapper, 0),
		logger:       logger,
		Ctx:          ctx,
		cancelFunc:   cancelFunc,
		g:            g,
		startTimeout: 5 * time.Second,
		stopTimeout:  5 * time.Second,
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			sm.logger.Infof("🟠 Received shutdown signal. Stopping services...")
			sm.cancelFunc()
		case <-ctx.Done():
		}
	}()

	return sm
}

// AddListenerInfo records a listening endpoint so that it shows up in ListenerInfos.
func (sm *ServiceManager) AddListenerInfo(name string) {
	sm.listenersMu.Lock()
	defer sm.listenersMu.Unlock()

	sm.listeners = append(sm.listeners, name)
}

// ListenerInfos returns the recorded endpoints, sorted.
func (sm *ServiceManager) ListenerInfos() []string {
	sm.listenersMu.RLock()
	defer sm.listenersMu.RUnlock()

	sorted := make([]string, len(sm.listeners))
	copy(sorted, sm.listeners)
	sort.Strings(sorted)

	return sorted
}

// ServicesHTTPHandler serves ListenerInfos as a JSON array.
func (sm *ServiceManager) ServicesHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		_ = json.NewEncoder(w).Encode(sm.ListenerInfos())
	}
}

// AddService initialises service and starts it on the errgroup. A service is only
// started once the service registered before it has started, or after startTimeout.
func (sm *ServiceManager) AddService(name string, service Service) error {
	sm.dependencyChannelsMux.Lock()
	sm.dependencyChannels = append(sm.dependencyChannels, make(chan bool))

	sw := serviceWrapper{
		name:     name,
		instance: service,
		index:    len(sm.dependencyChannels) - 1,
		readyCh:  make(chan struct{}, 1),
	}

	sm.dependencyChannelsMux.Unlock()

	sm.services = append(sm.services, sw)

	sm.logger.Infof("⚪️ Initializing service %s...", name)

	if err := service.Init(sm.Ctx); err != nil {
		return errors.NewServiceError("failed to initialise service %s", name, err)
	}

	sm.logger.Infof("🟢 Starting service %s...", name)

	sm.g.Go(func() error {
		if sw.index > 0 {
			sm.dependencyChannelsMux.Lock()
			previous := sm.dependencyChannels[sw.index-1]
			sm.dependencyChannelsMux.Unlock()

			if err := sm.waitForPreviousServiceToStart(sw, previous); err != nil {
				return err
			}
		}

		sm.dependencyChannelsMux.Lock()
		close(sm.dependencyChannels[sw.index])
		sm.dependencyChannelsMux.Unlock()

		if err := service.Start(sm.Ctx, sw.readyCh); err != nil {
			sm.logger.Errorf("Error from service start %s: %v", name, err)
			return err
		}

		return nil
	})

	return nil
}

// WaitForServiceToBeReady blocks until every service has closed its ready channel.
func (sm *ServiceManager) WaitForServiceToBeReady() {
	var wg sync.WaitGroup

	for _, service := range sm.services {
		wg.Add(1)

		go func(s serviceWrapper) {
			defer wg.Done()

			<-s.readyCh
			sm.logger.Infof("🟢 Service %s is ready", s.name)
		}(service)
	}

	wg.Wait()
}

// ServicesNotReady lists the services that have not closed their ready channel yet.
func (sm *ServiceManager) ServicesNotReady() []string {
	var notReady []string

	for _, service := range sm.services {
		select {
		case _, ok := <-service.readyCh:
			if ok {
				notReady = append(notReady, service.name)
			}
		default:
			notReady = append(notReady, service.name)
		}
	}

	return notReady
}

func (sm *ServiceManager) waitForPreviousServiceToStart(sw serviceWrapper, channel chan bool) error {
	timer := time.NewTimer(sm.startTimeout)
	defer timer.Stop()

	select {
	case <-channel:
		return nil
	case <-timer.C:
		return errors.NewServiceError("%s (index %d) timed out waiting for previous service to start", sw.name, sw.index)
	}
}

// ForceShutdown cancels the context of every service.
func (sm *ServiceManager) ForceShutdown() {
	sm.cancelFunc()
}

// Wait blocks until every service has returned from Start, then stops them in
// reverse order. Cancellation is a clean shutdown and returns nil, otherwise the
// first service error is returned.
func (sm *ServiceManager) Wait() error {
	err := sm.g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		sm.logger.Errorf("Received error: %v", err)
	}

	for i := len(sm.services) - 1; i >= 0; i-- {
		service := sm.services[i]

		stopCtx, stopCancel := context.WithTimeout(context.Background(), sm.stopTimeout)

		sm.logger.Infof("🟠 Stopping service %s...", service.name)

		if stopErr := service.instance.Stop(stopCtx); stopErr != nil {
			sm.logger.Warnf("[%s] Failed to stop service: %v", service.name, stopErr)
		} else {
			sm.logger.Infof("[%s] Service stopped gracefully", service.name)
		}

		stopCancel()
	}

	sm.cancelFunc()

	sm.logger.Infof("🛑 All services stopped.")

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// HealthHandler combines the health of every service. The status is 503 when any
// service is unhealthy.
func (sm *ServiceManager) HealthHandler(ctx context.Context, checkLiveness bool) (int, string, error) {
	overallStatus := http.StatusOK
	msgs := make([]string, 0, len(sm.services))

	for _, service := range sm.services {
		status, details, err := service.instance.Health(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			overallStatus = http.StatusServiceUnavailable
		}

		if len(details) == 0 || details[0] != '{' {
			details = fmt.Sprintf("%q", details)
		}

		msgs = append(msgs, fmt.Sprintf(`{"service": "%s","status": "%d","dependencies": [%s]}`, service.name, status, details))
	}

	jsonStr := fmt.Sprintf(`{"status": "%d", "services": [%s]}`, overallStatus, strings.Join(msgs, ",\n"))

	var jsonFormatted bytes.Buffer

	if err := json.Indent(&jsonFormatted, []byte(jsonStr), "", "  "); err == nil {
		jsonStr = jsonFormatted.String()
	}

	return overallStatus, jsonStr, nil
}

// HealthHTTPHandler serves HealthHandler. A request with ?liveness=true only checks
// liveness, anything else checks readiness including dependencies.
func (sm *ServiceManager) HealthHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkLiveness := r.URL.Query().Get("liveness") == "true"

		status, details, err := sm.HealthHandler(r.Context(), checkLiveness)
		if err != nil {
			sm.logger.Errorf("health check failed: %v", err)
			status = http.StatusInternalServerError
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)

		_, _ = w.Write([]byte(details))
	}
}
