package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JinTanba/conditional-token-index/internal/composer"
	"github.com/JinTanba/conditional-token-index/pkg/logger"
)

// StatusProvider 提供 composer 状态快照
type StatusProvider interface {
	Status() composer.Status
}

// Server 只读的状态接口
type Server struct {
	addr     string
	provider StatusProvider
	started  time.Time
	log      *logrus.Entry

	mu      sync.Mutex
	httpSrv *http.Server
	ln      net.Listener
}

func New(addr string, provider StatusProvider) (*Server, error) {
	if addr == "" {
		return nil, errors.New("listen address is required")
	}
	if provider == nil {
		return nil, errors.New("status provider is required")
	}
	return &Server{
		addr:     addr,
		provider: provider,
		started:  time.Now(),
		log:      logger.Component("controlplane"),
	}, nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"uptime": time.Since(s.started).Truncate(time.Second).String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.provider.Status()
	if st.PendingOrderIDs == nil {
		st.PendingOrderIDs = []string{}
	}
	c.JSON(http.StatusOK, st)
}

// Start 监听端口并在后台提供服务
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.ln = ln
	s.httpSrv = httpSrv
	s.mu.Unlock()

	go func() {
		s.log.Infof("status server listening on %s", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("http server error: %v", err)
		}
	}()
	return nil
}

// Addr 实际监听地址（":0" 时用于获取端口）
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpSrv := s.httpSrv
	s.mu.Unlock()
	if httpSrv == nil {
		return nil
	}
	return httpSrv.Shutdown(ctx)
}
