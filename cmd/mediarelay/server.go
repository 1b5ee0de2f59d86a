package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mediarelay/internal/constants"
	"mediarelay/internal/models"
	"mediarelay/internal/service"
	"mediarelay/pkg/onebot"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes the operator API: queue inspection, manual dispatch and
// the refresh/notification signals a front end polls.
type Server struct {
	router *mux.Router
	logger *logrus.Logger
	cfg    *models.Config
	relay  *service.Relay
	client *onebot.Client
	info   *service.GroupInfoService
	server *http.Server
}

func NewServer(cfg *models.Config, relay *service.Relay, client *onebot.Client, info *service.GroupInfoService, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		cfg:    cfg,
		relay:  relay,
		client: client,
		info:   info,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleQueue()).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh()).Methods(http.MethodGet)
	api.HandleFunc("/notifications", s.handleNotifications()).Methods(http.MethodGet)
	api.HandleFunc("/dispatch", s.handleDispatch()).Methods(http.MethodPost)
	api.HandleFunc("/scheduler/check", s.handleSchedulerCheck()).Methods(http.MethodPost)
	api.HandleFunc("/items/{id}/push-reviewer", s.handlePushReviewer()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting operator API on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("Response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	type groupView struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		state, since := s.client.State()
		media, forward := s.relay.Depths()

		groups := make([]groupView, 0, len(s.cfg.AllGroups()))
		for _, gid := range s.cfg.AllGroups() {
			view := groupView{ID: gid, Name: fmt.Sprintf("%d", gid), Avatar: service.GroupAvatarURL(gid)}
			if meta := s.info.GroupMeta(gid); meta != nil {
				view.Name = meta.Name
				view.Avatar = meta.AvatarURL
			}
			groups = append(groups, view)
		}

		payload := map[string]interface{}{
			"version":      Version,
			"gatewayState": state,
			"mediaDepth":   media,
			"forwardDepth": forward,
			"groups":       groups,
		}
		if !since.IsZero() {
			payload["disconnectedSince"] = since
		}
		s.writeJSON(w, http.StatusOK, payload)
	}
}

func (s *Server) handleQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := s.relay.Queue().Snapshot()
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"items": items,
			"count": len(items),
		})
	}
}

func (s *Server) handleRefresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]bool{
			"refreshNeeded": s.relay.Notifier().ConsumeRefresh(),
		})
	}
}

func (s *Server) handleNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notifications := s.relay.Notifier().Drain()
		if notifications == nil {
			notifications = []service.Notification{}
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"notifications": notifications,
		})
	}
}

// handleDispatch runs one of the three send strategies over the selected
// queue items.
func (s *Server) handleDispatch() http.HandlerFunc {
	type request struct {
		Strategy string   `json:"strategy"`
		IDs      []string `json:"ids"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.IDs) == 0 {
			s.writeError(w, http.StatusBadRequest, "no item ids given")
			return
		}

		ctx := r.Context()
		switch req.Strategy {
		case "merge":
			failed, err := s.relay.ManualMerge(ctx, req.IDs)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if len(failed) > 0 {
				s.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
					"error":        "delivery failed for some destinations, items stay queued",
					"failedGroups": failed,
				})
				return
			}
		case "direct":
			if err := s.relay.ManualDirect(ctx, req.IDs); err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		case "passthrough":
			if err := s.relay.ManualPassthrough(ctx, req.IDs); err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		default:
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown strategy %q", req.Strategy))
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{"result": "dispatched"})
	}
}

func (s *Server) handleSchedulerCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.relay.TriggerSchedulerCheck(r.Context())
		s.writeJSON(w, http.StatusOK, map[string]string{"result": "triggered"})
	}
}

func (s *Server) handlePushReviewer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ok, message := s.relay.PushToReviewer(r.Context(), id)
		status := http.StatusOK
		if !ok {
			status = http.StatusBadGateway
		}
		s.writeJSON(w, status, map[string]interface{}{
			"ok":      ok,
			"message": message,
		})
	}
}
