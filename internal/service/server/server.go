package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/repository/identity"
	"e2e_station/internal/service/processor"
	"e2e_station/internal/service/session"
	"e2e_station/internal/utils/log"
)

const (
	DefaultReadLimit    = 1 << 20
	DefaultWriteTimeout = 10 * time.Second
	shutdownTimeout     = 5 * time.Second
)

type (
	Station interface {
		ID() model.ID
		Meta() *model.Meta
		Pack(ctx context.Context, content *model.Content, receiver model.ID) (*model.Envelope, error)
	}

	Options struct {
		Addr         string
		ReadLimit    int64
		WriteTimeout time.Duration
	}

	HttpServer struct {
		opts      Options
		station   Station
		registry  *session.Registry
		directory identity.Directory
		procOpts  processor.Options
		logger    *zap.Logger

		mu    sync.Mutex
		conns map[*connection]struct{}
		ctx   context.Context
	}
)

func NewHttpServer(opts Options, station Station, registry *session.Registry, directory identity.Directory, procOpts processor.Options, logger *zap.Logger) *HttpServer {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = log.L()
	}
	return &HttpServer{
		opts:      opts,
		station:   station,
		registry:  registry,
		directory: directory,
		procOpts:  procOpts,
		logger:    logger.Named("server"),
		conns:     make(map[*connection]struct{}),
		ctx:       context.Background(),
	}
}

func (s *HttpServer) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws", s.HandleWS()).Methods(http.MethodGet)
	r.HandleFunc("/meta/{id}", s.GetMeta()).Methods(http.MethodGet)
	r.HandleFunc("/health", s.Health()).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is cancelled, then shuts down and closes every
// open connection.
func (s *HttpServer) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	srv := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("station listening", zap.String("addr", s.opts.Addr), zap.String("station", s.station.ID().String()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeAll()
	s.logger.Info("station stopped")
	return err
}

func (s *HttpServer) HandleWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}

		conn := newConnection(ws, s.opts.WriteTimeout)
		if !s.track(conn) {
			conn.close()
			return
		}
		s.serve(conn)
	}
}

func (s *HttpServer) track(conn *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *HttpServer) untrack(conn *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *HttpServer) closeAll() {
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (s *HttpServer) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// serve owns one connection: one session, one processor, one read loop.
func (s *HttpServer) serve(conn *connection) {
	ctx := s.baseContext()
	sess := session.New(conn)
	proc := processor.NewProcessor(sess, s.procOpts)
	logger := s.logger.With(zap.String("conn", conn.id), zap.String("remote", conn.RemoteAddr()))
	logger.Debug("connection opened")

	defer func() {
		s.registry.Remove(sess)
		s.untrack(conn)
		conn.close()
		logger.Debug("connection closed", zap.String("identifier", sess.Identifier().String()))
	}()

	conn.ws.SetReadLimit(s.opts.ReadLimit)
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			logger.Debug("web socket closed", zap.Error(err))
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("unmarshal envelope failed", zap.Error(err))
			continue
		}

		res := proc.Process(ctx, &env)
		if res == nil {
			continue
		}

		out, err := s.station.Pack(ctx, res, env.Sender)
		if err != nil {
			logger.Error("pack response failed", zap.String("receiver", env.Sender.String()), zap.Error(err))
			continue
		}
		if err := conn.write(out); err != nil {
			logger.Debug("write response failed", zap.Error(err))
			return
		}
	}
}

func (s *HttpServer) GetMeta() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := model.ID(mux.Vars(r)["id"])

		var meta *model.Meta
		if id == s.station.ID() || id == "station" {
			meta = s.station.Meta()
			id = s.station.ID()
		} else {
			var err error
			meta, err = s.directory.Meta(r.Context(), id)
			if err != nil {
				s.logger.Error("get meta failed", zap.String("id", id.String()), zap.Error(err))
				http.Error(w, "get meta failed", http.StatusInternalServerError)
				return
			}
		}
		if meta == nil {
			http.Error(w, "meta not found", http.StatusNotFound)
			return
		}

		writeJSON(w, struct {
			ID   model.ID    `json:"ID"`
			Meta *model.Meta `json:"meta"`
		}{ID: id, Meta: meta})
	}
}

func (s *HttpServer) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":   "ok",
			"station":  s.station.ID(),
			"sessions": s.registry.Count(),
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("marshal response failed", zap.Error(err))
		http.Error(w, "marshal response failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
