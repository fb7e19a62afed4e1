package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/ulogger"
	"github.com/halocoin/halominer/util/health"
	"github.com/halocoin/halominer/util/servicemanager"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxTxBodySize = 1 << 20

	// txRateLimit is the number of transactions per second the intake accepts.
	txRateLimit = 100
)

type txPool interface {
	AddTransaction(ctx context.Context, tx *model.Transaction) error
}

// httpServer exposes metrics, health, the listener list and a transaction intake
// for the devnet pool.
type httpServer struct {
	logger  ulogger.Logger
	address string
	sm      *servicemanager.ServiceManager
	pool    txPool
	server  *http.Server
	baseURL atomic.String
	limiter *rate.Limiter
}

func newHTTPServer(logger ulogger.Logger, address string, sm *servicemanager.ServiceManager, pool txPool) *httpServer {
	s := &httpServer{
		logger:  logger,
		address: address,
		sm:      sm,
		pool:    pool,
		limiter: rate.NewLimiter(rate.Limit(txRateLimit), txRateLimit),
	}

	s.baseURL.Store(localURL(address))

	return s
}

func (s *httpServer) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "HTTPServer", Check: health.CheckHTTPServer(s.baseURL.Load(), "/health?liveness=true")},
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (s *httpServer) Init(_ context.Context) error {
	return nil
}

func (s *httpServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", s.sm.HealthHTTPHandler())
	mux.Handle("/services", s.sm.ServicesHTTPHandler())
	mux.HandleFunc("/tx", s.handleTx)

	return mux
}

func (s *httpServer) Start(ctx context.Context, readyCh chan<- struct{}) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return errors.NewServiceError("[HTTP] failed to listen on %s", s.address, err)
	}

	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.baseURL.Store(localURL(listener.Addr().String()))
	s.sm.AddListenerInfo("HTTP: " + s.baseURL.Load())
	s.logger.Infof("[HTTP] listening on %s", listener.Addr())

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.server.Serve(listener)
	}()

	if readyCh != nil {
		close(readyCh)
	}

	select {
	case <-ctx.Done():
		return s.Stop(context.WithoutCancel(ctx))
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return errors.NewServiceError("[HTTP] server failed", err)
	}
}

func (s *httpServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.NewServiceError("[HTTP] shutdown failed", err)
	}

	return nil
}

// handleTx accepts a JSON encoded transaction into the pending pool.
func (s *httpServer) handleTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	if !s.limiter.Allow() {
		http.Error(w, "too many transactions", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTxBodySize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx := &model.Transaction{}
	if err = json.Unmarshal(body, tx); err != nil {
		http.Error(w, "invalid transaction: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err = s.pool.AddTransaction(r.Context(), tx); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	hash, err := tx.Hash()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Debugf("[HTTP] accepted transaction %s", hash)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	_ = json.NewEncoder(w).Encode(map[string]string{"hash": hash.String()})
}

// localURL turns a listen address such as ":9091" into a dialable base url.
func localURL(address string) string {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "http://" + address
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	return "http://" + net.JoinHostPort(host, port)
}
