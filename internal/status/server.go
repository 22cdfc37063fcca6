package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"cryptostream/config"
	"cryptostream/logger"
)

const defaultPort = "8081"

// Provider returns a JSON-encodable view of one component.
type Provider func() interface{}

// Server exposes component state, recent warnings and host resources over HTTP.
type Server struct {
	cfg        config.StatusConfig
	log        *logger.Log
	logStore   *logStore
	sampler    *sampler
	started    time.Time
	httpServer *http.Server

	mu        sync.RWMutex
	providers map[string]Provider
}

// NewServer returns nil when the status server is disabled.
func NewServer(cfg config.StatusConfig, log *logger.Log) *Server {
	if !cfg.Enabled {
		return nil
	}
	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}

	logs := newLogStore(cfg.LogHistory)
	log.AddHook(logs)

	return &Server{
		cfg:       cfg,
		log:       log,
		logStore:  logs,
		sampler:   newSampler(cfg.ResourceHistory, cfg.RefreshInterval, "/", log),
		started:   time.Now(),
		providers: make(map[string]Provider),
	}
}

// AddStatus registers fn under name, replacing any previous provider.
func (s *Server) AddStatus(name string, fn Provider) {
	if s == nil || fn == nil {
		return
	}
	s.mu.Lock()
	s.providers[name] = fn
	s.mu.Unlock()
}

func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}
	defer s.logStore.close()

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}

	sampleCtx, stopSampling := context.WithCancel(ctx)
	s.sampler.start(sampleCtx)
	defer func() {
		stopSampling()
		s.sampler.wait()
	}()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.WithComponent("status").WithFields(logger.Fields{"address": s.cfg.Address}).Info("status server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"app":    appName,
			"status": "ok",
			"uptime": time.Since(s.started).Round(time.Second).String(),
		})
	})

	router.GET("/api/status", func(c *gin.Context) {
		s.mu.RLock()
		names := make([]string, 0, len(s.providers))
		for name := range s.providers {
			names = append(names, name)
		}
		s.mu.RUnlock()
		sort.Strings(names)

		components := make(gin.H, len(names))
		for _, name := range names {
			if fn := s.provider(name); fn != nil {
				components[name] = fn()
			}
		}
		c.JSON(http.StatusOK, gin.H{"app": appName, "components": components})
	})

	router.GET("/api/status/:name", func(c *gin.Context) {
		name := c.Param("name")
		fn := s.provider(name)
		if fn == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown component " + name})
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": name, "status": fn()})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})

	router.GET("/api/resources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"resources": s.sampler.snapshot()})
	})

	return router, nil
}

func (s *Server) provider(name string) Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providers[name]
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:" + defaultPort
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if parsed.Host != "" {
				addr = parsed.Host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") && len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
		return "0.0.0.0" + addr
	}

	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultPort
		}
		return net.JoinHostPort(host, port)
	}

	if net.ParseIP(addr) != nil || !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}
