package webd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/olahol/melody"
	"github.com/rotblauer/aploc/api"
	"github.com/rotblauer/aploc/catdb"
	"github.com/rotblauer/aploc/params"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig

	localizer      *api.Localizer
	store          *catdb.Store
	responses      *ttlcache.Cache[string, []byte]
	started        time.Time
	logger         *slog.Logger
	melodyInstance *melody.Melody
	stopSocket     func()
}

// NewWebDaemon opens the store in config.DataDir and prepares a localizer for POST /localize.
func NewWebDaemon(config *params.WebDaemonConfig, lcfg *params.LocalizationConfig) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	localizer, err := api.NewLocalizer(lcfg)
	if err != nil {
		return nil, err
	}
	store, err := catdb.Open(config.DataDir, false)
	if err != nil {
		return nil, err
	}
	s := &WebDaemon{
		Config:    config,
		localizer: localizer,
		store:     store,
		responses: ttlcache.New[string, []byte](
			ttlcache.WithTTL[string, []byte](params.CacheResponseTTL)),
		started: time.Now(),
		logger:  slog.With("d", "web"),
	}
	s.initMelody()
	return s, nil
}

// Run serves HTTP on the configured listener until ctx is done,
// then shuts the server down gracefully.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", ln.Addr().String())
		errs <- server.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("Stopping web daemon")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the websocket hub and closes the store.
func (s *WebDaemon) Close() error {
	s.stopSocket()
	_ = s.melodyInstance.Close()
	return s.store.Close()
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	// Handle websocket.
	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	jsonMiddleware := contentTypeMiddlewareFunc("application/json")
	apiJSONRoutes.Use(jsonMiddleware)

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/aps").HandlerFunc(s.handleListAPs).Methods(http.MethodGet)
	apiJSONRoutes.Path("/aps/{bssid}").HandlerFunc(s.handleGetAP).Methods(http.MethodGet)

	geoJSONRoutes := apiRoutes.NewRoute().Subrouter()
	geoJSONRoutes.Use(contentTypeMiddlewareFunc("application/geo+json"))
	geoJSONRoutes.Path("/aps.geojson").HandlerFunc(s.handleAPsGeoJSON).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(s.tokenAuthenticationMiddleware)
	authenticatedAPIRoutes.Path("/localize").HandlerFunc(s.handleLocalize).Methods(http.MethodPost)

	return router
}
