package servicemanager

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mu           sync.Mutex
	name         string
	failOn       string
	healthStatus int
	healthErr    error
	stopErr      error
	initCalled   bool
	startCalled  bool
	stopCalled   bool
	stopOrder    *[]string
}

func newMockService(name string) *mockService {
	return &mockService{name: name, healthStatus: http.StatusOK}
}

func (s *mockService) Health(context.Context, bool) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.healthStatus, "OK", s.healthErr
}

func (s *mockService) Init(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initCalled = true

	if s.failOn == "init" {
		return errors.NewServiceError("mock service failure in init")
	}

	return nil
}

func (s *mockService) Start(ctx context.Context, readyCh chan<- struct{}) error {
	s.mu.Lock()
	s.startCalled = true
	failOn := s.failOn
	s.mu.Unlock()

	if failOn == "start" {
		return errors.NewServiceError("mock service failure in start")
	}

	close(readyCh)
	<-ctx.Done()

	return nil
}

func (s *mockService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopCalled = true

	if s.stopOrder != nil {
		*s.stopOrder = append(*s.stopOrder, s.name)
	}

	return s.stopErr
}

func (s *mockService) called() (bool, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.initCalled, s.startCalled, s.stopCalled
}

func newTestManager(ctx context.Context) *ServiceManager {
	return NewServiceManager(ctx, ulogger.New("test", ulogger.WithWriter(io.Discard)))
}

func TestAddService(t *testing.T) {
	t.Run("init and start", func(t *testing.T) {
		sm := newTestManager(context.Background())
		defer sm.ForceShutdown()

		service := newMockService("svc")
		require.NoError(t, sm.AddService("svc", service))

		sm.WaitForServiceToBeReady()
		assert.Empty(t, sm.ServicesNotReady())

		init, start, _ := service.called()
		assert.True(t, init)
		assert.True(t, start)
	})

	t.Run("init failure", func(t *testing.T) {
		sm := newTestManager(context.Background())
		defer sm.ForceShutdown()

		service := newMockService("svc")
		service.failOn = "init"

		err := sm.AddService("svc", service)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrServiceError))
	})

	t.Run("dependency ordering", func(t *testing.T) {
		sm := newTestManager(context.Background())
		defer sm.ForceShutdown()

		for _, name := range []string{"a", "b", "c"} {
			require.NoError(t, sm.AddService(name, newMockService(name)))
		}

		assert.Len(t, sm.dependencyChannels, 3)

		for i, sw := range sm.services {
			assert.Equal(t, i, sw.index)
		}

		sm.WaitForServiceToBeReady()
	})
}

func TestWaitForPreviousServiceToStart(t *testing.T) {
	sm := newTestManager(context.Background())
	defer sm.ForceShutdown()

	sm.startTimeout = 20 * time.Millisecond

	channel := make(chan bool)
	sw := serviceWrapper{name: "svc", index: 1}

	err := sm.waitForPreviousServiceToStart(sw, channel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out waiting")

	close(channel)
	require.NoError(t, sm.waitForPreviousServiceToStart(sw, channel))
}

func TestWait(t *testing.T) {
	t.Run("cancellation stops in reverse order", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		sm := newTestManager(ctx)

		var order []string

		services := []*mockService{newMockService("a"), newMockService("b"), newMockService("c")}
		for _, s := range services {
			s.stopOrder = &order
			require.NoError(t, sm.AddService(s.name, s))
		}

		sm.WaitForServiceToBeReady()
		cancel()

		require.NoError(t, sm.Wait())
		assert.Equal(t, []string{"c", "b", "a"}, order)
	})

	t.Run("start failure cancels the others", func(t *testing.T) {
		sm := newTestManager(context.Background())

		healthy := newMockService("healthy")
		failing := newMockService("failing")
		failing.failOn = "start"

		require.NoError(t, sm.AddService("healthy", healthy))
		require.NoError(t, sm.AddService("failing", failing))

		err := sm.Wait()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mock service failure")

		_, _, stopped := healthy.called()
		assert.True(t, stopped)
	})

	t.Run("stop failure is logged only", func(t *testing.T) {
		sm := newTestManager(context.Background())

		service := newMockService("svc")
		service.stopErr = errors.NewServiceError("stop error")
		require.NoError(t, sm.AddService("svc", service))

		sm.WaitForServiceToBeReady()
		sm.ForceShutdown()

		require.NoError(t, sm.Wait())
	})
}

func TestHealthHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("no services", func(t *testing.T) {
		sm := newTestManager(ctx)
		defer sm.ForceShutdown()

		status, response, err := sm.HealthHandler(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, response, `"services": []`)
	})

	t.Run("one unhealthy service", func(t *testing.T) {
		sm := newTestManager(ctx)
		defer sm.ForceShutdown()

		unhealthy := newMockService("unhealthy")
		unhealthy.healthStatus = http.StatusServiceUnavailable

		require.NoError(t, sm.AddService("healthy", newMockService("healthy")))
		require.NoError(t, sm.AddService("unhealthy", unhealthy))

		status, response, err := sm.HealthHandler(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Contains(t, response, `"status": "503"`)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(response), &decoded))
		assert.Len(t, decoded["services"], 2)
	})

	t.Run("http handler", func(t *testing.T) {
		sm := newTestManager(ctx)
		defer sm.ForceShutdown()

		failing := newMockService("svc")
		failing.healthErr = errors.NewServiceError("health error")
		require.NoError(t, sm.AddService("svc", failing))

		rec := httptest.NewRecorder()
		sm.HealthHTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health?liveness=true", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `"service": "svc"`)
	})
}

func TestListenerInfos(t *testing.T) {
	sm := newTestManager(context.Background())
	defer sm.ForceShutdown()

	assert.Empty(t, sm.ListenerInfos())

	var wg sync.WaitGroup

	for _, name := range []string{"metrics", "health", "blockchain"} {
		wg.Add(1)

		go func(name string) {
			defer wg.Done()
			sm.AddListenerInfo(name)
		}(name)
	}

	wg.Wait()

	assert.Equal(t, []string{"blockchain", "health", "metrics"}, sm.ListenerInfos())

	rec := httptest.NewRecorder()
	sm.ServicesHTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/services", nil))

	var listed []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, []string{"blockchain", "health", "metrics"}, listed)
}
