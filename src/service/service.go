package service

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/config"
	"github.com/swiftcashproject/swiftnode/src/node"
	"github.com/swiftcashproject/swiftnode/src/telemetry"
)

// Service exposes the state of a swiftnode daemon over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	conf        *config.SwiftnodeConf
	router      *mux.Router
	logger      *logrus.Entry
}

// NewService ... conf holds the swiftnode.conf entries and may be nil.
func NewService(bindAddress string, n *node.Node, conf *config.SwiftnodeConf, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		conf:        conf,
		router:      mux.NewRouter(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers sets up the routes of the API. Each route is counted in
// the request metrics under its own op label.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering swiftnode API handlers")

	s.router.Handle("/metrics", telemetry.MetricsHandler()).Methods("GET")

	s.handle("/stats", "stats", s.GetStats).Methods("GET")
	s.handle("/status", "status", s.GetStatus).Methods("GET")
	s.handle("/nodes", "nodes", s.GetNodes).Methods("GET")
	s.handle("/nodes/{hash}/{index}", "node", s.GetNode).Methods("GET")
	s.handle("/rank/{rank}", "rank", s.GetRank).Methods("GET")
	s.handle("/current", "current", s.GetCurrent).Methods("GET")
	s.handle("/winners", "winners", s.GetWinners).Methods("GET")
	s.handle("/sync", "sync", s.GetSync).Methods("GET")
	s.handle("/peers", "peers", s.GetPeers).Methods("GET")
	s.handle("/conf", "conf", s.GetConf).Methods("GET")
	s.handle("/start-alias/{alias}", "start_alias", s.StartAlias).Methods("POST")
}

func (s *Service) handle(path string, op string, fn http.HandlerFunc) *mux.Route {
	return s.router.Handle(path, telemetry.Instrument(op, s.makeHandler(fn)))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the router of the service, to be mounted on another
// server.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving swiftnode API")

	err := http.ListenAndServe(s.bindAddress, s.router)
	if err != nil {
		s.logger.Error(err)
	}
}
