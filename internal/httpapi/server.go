// Package httpapi exposes a small read-only status endpoint over HTTP,
// for dashboards and health checks that would rather poll JSON than
// speak the daemon's Unix-socket IPC protocol.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/austinkregel/rune-musicd/internal/analysis"
	"github.com/austinkregel/rune-musicd/internal/catalog"
	"github.com/austinkregel/rune-musicd/internal/engine"
)

// Server serves the read-only status API.
type Server struct {
	eng          *engine.Engine
	catalogDB    *catalog.DB
	featureStore *analysis.FeatureStore
	router       *gin.Engine
	http         *http.Server
}

// New builds a Server backed by eng and catalogDB. catalogDB may be nil,
// in which case /api/catalog reports zero counts rather than erroring.
// featureStore may also be nil; /api/communities then returns an empty list.
func New(eng *engine.Engine, catalogDB *catalog.DB, featureStore *analysis.FeatureStore) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(securityHeaders())

	s := &Server{eng: eng, catalogDB: catalogDB, featureStore: featureStore, router: router}

	router.GET("/health", s.health)
	router.GET("/api/status", s.status)
	router.GET("/api/queue", s.queue)
	router.GET("/api/catalog", s.catalogStats)
	router.GET("/api/communities", s.communities)

	return s
}

// Run starts the HTTP listener on addr and blocks until ctx is
// cancelled, at which point it shuts the server down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] status API listening on %s", addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// securityHeaders applies baseline hardening headers, even on a
// read-only internal API.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// status reports the Engine's current playback state without routing
// through IPC, for process-external monitoring.
func (s *Server) status(c *gin.Context) {
	cursor := s.eng.Cursor()
	c.JSON(http.StatusOK, gin.H{
		"state":      s.eng.State().String(),
		"queueSize":  len(s.eng.Playlist()),
		"queueIndex": cursor.Index,
		"path":       cursor.Item.FilePath,
	})
}

func (s *Server) queue(c *gin.Context) {
	playlist := s.eng.Playlist()
	paths := make([]string, len(playlist))
	for i, item := range playlist {
		paths[i] = item.FilePath
	}
	c.JSON(http.StatusOK, gin.H{"items": paths})
}

// catalogStats reports how much of the library has been cataloged, for
// a dashboard tracking Analysis Batcher progress.
func (s *Server) catalogStats(c *gin.Context) {
	if s.catalogDB == nil {
		c.JSON(http.StatusOK, gin.H{"totalFiles": 0})
		return
	}
	total, err := s.catalogDB.TotalCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read catalog"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalFiles": total})
}

// communities groups cataloged tracks by similarity, computing the
// grouping on first request and serving the cached result from the
// feature store afterward.
func (s *Server) communities(c *gin.Context) {
	if s.featureStore == nil {
		c.JSON(http.StatusOK, gin.H{"communities": []analysis.CommunityInfo{}})
		return
	}

	infos := s.featureStore.GetCommunities()
	if len(infos) == 0 {
		simEngine := analysis.NewSimilarityEngine(s.featureStore)
		simEngine.BuildGraph()
		detector := analysis.NewCommunityDetector(s.featureStore, simEngine)
		infos = detector.DetectCommunities()
		s.featureStore.StoreCommunityInfo(infos)
	}

	c.JSON(http.StatusOK, gin.H{"communities": infos})
}
