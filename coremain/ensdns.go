package coremain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-redis/redis/v8"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ensdns/ensdns/mlog"
	"github.com/ensdns/ensdns/pkg/cache"
	"github.com/ensdns/ensdns/pkg/cache/mem_cache"
	"github.com/ensdns/ensdns/pkg/cache/redis_cache"
	"github.com/ensdns/ensdns/pkg/dnsutils"
	"github.com/ensdns/ensdns/pkg/ensdns"
	"github.com/ensdns/ensdns/pkg/safe_close"
)

const (
	defaultAPIAddr        = "127.0.0.1:8654"
	defaultRequestTimeout = time.Second * 10
)

// EnsDNS is one running instance: an engine plus its HTTP API.
type EnsDNS struct {
	logger  *zap.Logger
	engine  *ensdns.Engine
	timeout time.Duration

	httpAPIMux    *http.ServeMux
	httpAPIServer *http.Server
	metricsReg    *prometheus.Registry

	sc *safe_close.SafeClose
}

func RunEnsDNS(cfg *Config) error {
	lg, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	metrics := ensdns.NewMetrics()
	engine, cleanup, err := buildEngine(lg, cfg, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	timeout := defaultRequestTimeout
	if cfg.Chain.Timeout > 0 {
		timeout = time.Duration(cfg.Chain.Timeout) * time.Second
	}

	m := &EnsDNS{
		logger:     lg,
		engine:     engine,
		timeout:    timeout,
		httpAPIMux: http.NewServeMux(),
		metricsReg: newMetricsReg(),
		sc:         safe_close.NewSafeClose(),
	}
	if err := metrics.Register(m.metricsReg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	m.httpAPIMux.Handle("/metrics", promhttp.HandlerFor(m.metricsReg, promhttp.HandlerOpts{}))
	m.httpAPIMux.HandleFunc("/debug/pprof/", pprof.Index)
	m.httpAPIMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	m.httpAPIMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	m.httpAPIMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	m.httpAPIMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	m.httpAPIMux.HandleFunc("/resolve", m.handleResolve)
	m.httpAPIMux.HandleFunc("/purge", m.handlePurge)

	addr := cfg.API.Addr
	if len(addr) == 0 {
		addr = defaultAPIAddr
	}
	m.httpAPIServer = &http.Server{Addr: addr, Handler: m.httpAPIMux}

	m.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		m.logger.Info("starting api server", zap.String("addr", addr))
		errChan := make(chan error, 1)
		go func() {
			errChan <- m.httpAPIServer.ListenAndServe()
		}()
		select {
		case err := <-errChan:
			m.sc.SendCloseSignal(fmt.Errorf("api server exited, %w", err))
		case <-closeSignal:
			m.httpAPIServer.Close()
		}
	})

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		sig := <-c
		m.logger.Info("signal received, exiting", zap.Stringer("signal", sig))
		m.sc.SendCloseSignal(nil)
	}()

	<-m.sc.ReceiveCloseSignal()
	m.sc.Done()
	m.sc.CloseWait()
	return m.sc.Err()
}

func newMetricsReg() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return reg
}

// buildEngine assembles the resolution engine from the config: chain
// client, cache backend, registry binding.
func buildEngine(lg *zap.Logger, cfg *Config, metrics *ensdns.Metrics) (*ensdns.Engine, func(), error) {
	if len(cfg.Chain.Endpoint) == 0 {
		return nil, nil, errors.New("no chain endpoint configured")
	}
	ec, err := ethclient.Dial(cfg.Chain.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial chain endpoint: %w", err)
	}

	var backend cache.Backend
	if len(cfg.Cache.Redis) > 0 {
		opt, err := redis.ParseURL(cfg.Cache.Redis)
		if err != nil {
			ec.Close()
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opt)
		backend, err = redis_cache.NewRedisCache(redis_cache.RedisCacheOpts{
			Client:       client,
			ClientCloser: client,
			Logger:       lg,
		})
		if err != nil {
			ec.Close()
			return nil, nil, fmt.Errorf("failed to init redis cache: %w", err)
		}
	} else {
		backend = mem_cache.NewMemCache(cfg.Cache.Size)
	}

	var root common.Address
	if len(cfg.Chain.Registry) > 0 {
		if !common.IsHexAddress(cfg.Chain.Registry) {
			ec.Close()
			return nil, nil, fmt.Errorf("invalid registry address %q", cfg.Chain.Registry)
		}
		root = common.HexToAddress(cfg.Chain.Registry)
	}

	engine, err := ensdns.NewEngine(ensdns.Opts{
		Logger:   lg,
		Caller:   ec,
		Backend:  backend,
		CacheTTL: time.Duration(cfg.Cache.TTL) * time.Second,
		Root:     root,
		TLD:      cfg.Chain.TLD,
		Metrics:  metrics,
	})
	if err != nil {
		ec.Close()
		return nil, nil, fmt.Errorf("failed to init engine: %w", err)
	}

	cleanup := func() {
		engine.Close()
		ec.Close()
	}
	return engine, cleanup, nil
}

type resolveResponse struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	RRSet   string   `json:"rrset"`
	Records []string `json:"records,omitempty"`
}

func (m *EnsDNS) handleResolve(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("name")
	if len(name) == 0 {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	qtype, ok := parseQType(req.URL.Query().Get("type"))
	if !ok {
		http.Error(w, "unknown record type", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), m.timeout)
	defer cancel()

	rrset, err := m.engine.Resolve(ctx, name, qtype)
	if err != nil {
		m.logger.Warn("resolution failed", zap.String("name", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if rrset == nil {
		http.Error(w, "no data", http.StatusNotFound)
		return
	}

	resp := resolveResponse{
		Name:  name,
		Type:  dns.TypeToString[qtype],
		RRSet: hexutil.Encode(rrset),
	}
	if rrs, err := dnsutils.UnpackRRSet(rrset); err == nil {
		for _, rr := range rrs {
			resp.Records = append(resp.Records, rr.String())
		}
	} else {
		m.logger.Warn("stored rrset does not parse", zap.String("name", name), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		m.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (m *EnsDNS) handlePurge(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	m.engine.Purge()
	m.logger.Info("cache purged")
	w.WriteHeader(http.StatusNoContent)
}

// parseQType accepts a type mnemonic ("A", "NS") or a numeric type
// code. An empty string means A.
func parseQType(s string) (uint16, bool) {
	if len(s) == 0 {
		return dns.TypeA, true
	}
	if t, ok := dns.StringToType[strings.ToUpper(s)]; ok {
		return t, true
	}
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return uint16(n), true
	}
	return 0, false
}

// resolveOnce backs the one-shot resolve command.
func resolveOnce(sf *serverFlags, name, qtypeStr string) error {
	cfg, err := loadConfig(sf.c)
	if err != nil {
		return fmt.Errorf("fail to load config, %w", err)
	}
	lg, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	qtype, ok := parseQType(qtypeStr)
	if !ok {
		return fmt.Errorf("unknown record type %q", qtypeStr)
	}

	engine, cleanup, err := buildEngine(lg, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	timeout := defaultRequestTimeout
	if cfg.Chain.Timeout > 0 {
		timeout = time.Duration(cfg.Chain.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rrset, err := engine.Resolve(ctx, name, qtype)
	if err != nil {
		return err
	}
	if rrset == nil {
		fmt.Println("no data")
		return nil
	}

	rrs, err := dnsutils.UnpackRRSet(rrset)
	if err != nil {
		// Still show the raw bytes when they don't parse as records.
		fmt.Println(hexutil.Encode(rrset))
		return nil
	}
	for _, rr := range rrs {
		fmt.Println(rr.String())
	}
	return nil
}
