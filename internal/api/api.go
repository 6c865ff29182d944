package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/feed"
	"pkg.aura.care/moodfeed/internal/moodlog"
)

type Config struct {
	Port           uint16
	AllowedOrigins []string
	DefaultLimit   int
}

func NewConfig(port uint16, allowedOrigins []string, defaultLimit int) *Config {
	if defaultLimit <= 0 {
		defaultLimit = feed.DefaultFeedLimit
	}
	return &Config{Port: port, AllowedOrigins: allowedOrigins, DefaultLimit: defaultLimit}
}

// Authenticator turns an Authorization header into a user id.
type Authenticator interface {
	FromHeader(header string) (string, error)
}

type API struct {
	ctx      context.Context
	logger   *zap.SugaredLogger
	feed     *feed.Service
	moods    *moodlog.Service
	auth     Authenticator
	gatherer prometheus.Gatherer
	config   *Config
	router   *gin.Engine
	serv     *http.Server
}

func NewAPI(ctx context.Context, logger *zap.SugaredLogger, feeds *feed.Service, moods *moodlog.Service, auth Authenticator, gatherer prometheus.Gatherer, config *Config) *API {
	a := &API{
		ctx:      ctx,
		logger:   logger,
		feed:     feeds,
		moods:    moods,
		auth:     auth,
		gatherer: gatherer,
		config:   config,
		router:   gin.New(),
	}
	a.serv = &http.Server{
		Addr:        fmt.Sprintf(":%d", config.Port),
		Handler:     a.router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	a.router.Use(gin.Recovery(), a.logRequests(), a.corsPolicy(), a.identify())
	a.registerHealth()
	a.registerGetFeed()
	a.registerGetEntry()
	a.registerPostEntry()
	a.registerSetLiked()
	a.registerMoods()
	return a
}

// Handler exposes the router, mostly for tests.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) Listen() {
	go func() {
		if err := a.serv.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				a.logger.Errorf("Server returned with error: %s.", err)
			}
		}
	}()
}

func (a *API) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.serv.Shutdown(ctx)
}

func (a *API) corsPolicy() gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range a.config.AllowedOrigins {
		if o == "*" {
			c.AllowAllOrigins = true
		}
	}
	if !c.AllowAllOrigins {
		c.AllowOrigins = a.config.AllowedOrigins
	}
	if !c.AllowAllOrigins && len(c.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	}
	return cors.New(c)
}

// registerHealth GET /healthz, GET /metrics
func (a *API) registerHealth() {
	a.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	a.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
}
