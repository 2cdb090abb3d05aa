// Package server exposes the recorder over a local HTTP control API.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ivlev/scriptcam/internal/aspect"
	"github.com/ivlev/scriptcam/internal/capture"
	perr "github.com/ivlev/scriptcam/internal/errors"
	"github.com/ivlev/scriptcam/internal/library"
	"github.com/ivlev/scriptcam/internal/logger"
	"github.com/ivlev/scriptcam/internal/recorder"
	"github.com/ivlev/scriptcam/internal/script"
	"github.com/ivlev/scriptcam/internal/scroll"
)

// Recorder is the take lifecycle driven by the API.
type Recorder interface {
	Start(ctx context.Context, snap script.Snapshot, policy aspect.Policy) (recorder.Take, error)
	Stop(ctx context.Context) *capture.Pending
	SetAspect(policy aspect.Policy) bool
	UpdateScript(snap script.Snapshot) bool
	Status() recorder.Status
}

// Positions streams scroll updates.
type Positions interface {
	Subscribe(buffer int) (<-chan scroll.Position, func())
}

// Library lists finished videos.
type Library interface {
	List() ([]library.Entry, error)
	Last() (capture.Delivery, bool)
}

// Orienter accepts attitude reports and applies them to the session.
type Orienter interface {
	Set(o capture.Orientation)
}

type Deps struct {
	Recorder   Recorder
	Positions  Positions
	Library    Library
	Attitude   Orienter
	Session    interface{ UpdateOrientation() capture.Orientation }
	ScriptsDir string
}

type Server struct {
	deps Deps
	log  *logger.Logger
	mux  *chi.Mux
	srv  *http.Server

	upgrader websocket.Upgrader
	quit     chan struct{}
	quitOnce sync.Once
}

func New(addr string, deps Deps, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		deps: deps,
		log:  log,
		mux:  chi.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
	s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv.RegisterOnShutdown(s.closeStreams)
	return s
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Route("/recordings", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Get("/last", s.handleLast)
		r.Put("/aspect", s.handleAspect)
		r.Put("/script", s.handleScript)
	})
	r.Put("/orientation", s.handleOrientation)
	r.Route("/scripts", func(r chi.Router) {
		r.Post("/", s.handleSaveScript)
		r.Get("/{id}", s.handleGetScript)
	})
	r.Get("/scroll/ws", s.handleScroll)
	r.Get("/overlay/qr", s.handleQR)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) Addr() string { return s.srv.Addr }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http listening")

	errc := make(chan error, 1)
	go func() { errc <- s.srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) closeStreams() {
	s.quitOnce.Do(func() { close(s.quit) })
}

type scrollView struct {
	State   string  `json:"state"`
	Mode    string  `json:"mode"`
	Offset  float64 `json:"offset"`
	Final   float64 `json:"final"`
	Elapsed float64 `json:"elapsed"`
}

type statusView struct {
	Ready     bool           `json:"ready"`
	Recording bool           `json:"recording"`
	Take      *recorder.Take `json:"take,omitempty"`
	Scroll    scrollView     `json:"scroll"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.deps.Recorder.Status()
	respond(w, http.StatusOK, statusView{
		Ready:     st.Ready,
		Recording: st.Recording,
		Take:      st.Take,
		Scroll: scrollView{
			State:   st.Scroll.State.String(),
			Mode:    st.Scroll.Mode.String(),
			Offset:  st.Scroll.Offset,
			Final:   st.Scroll.Final,
			Elapsed: st.Scroll.Elapsed.Seconds(),
		},
	})
}

type startRequest struct {
	ScriptID    string   `json:"scriptId"`
	Title       string   `json:"title" validate:"max=200"`
	Text        string   `json:"text"`
	ScrollSpeed float64  `json:"scrollSpeed" validate:"gte=0,lte=1000"`
	TimeLimit   *float64 `json:"timeLimit" validate:"omitempty,gte=0,lte=86400"`
	Aspect      string   `json:"aspect"`
}

func (s *Server) snapshot(req startRequest) (script.Snapshot, error) {
	if req.ScriptID == "" {
		return script.Snapshot{
			Title:       req.Title,
			Text:        req.Text,
			ScrollSpeed: req.ScrollSpeed,
			TimeLimit:   req.TimeLimit,
		}, nil
	}
	sc, err := s.loadScript(req.ScriptID)
	if err != nil {
		return script.Snapshot{}, err
	}
	return sc.Snapshot(req.ScrollSpeed), nil
}

func (s *Server) loadScript(id string) (*script.Script, error) {
	var path string
	if id == "latest" {
		p, err := script.FindLatest(s.deps.ScriptsDir)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidConfig, "no saved scripts")
		}
		path = p
	} else {
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, perr.InvalidConfigf("bad script id %q", id)
		}
		path = script.PathFor(s.deps.ScriptsDir, &script.Script{ID: uid})
	}
	sc, err := script.Read(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidConfig, "load script %s", id)
	}
	return sc, nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := bind(r, &req); err != nil {
		respondError(w, err)
		return
	}
	policy, err := aspect.Parse(req.Aspect)
	if err != nil {
		respondError(w, perr.Wrap(err, perr.ErrorCodeInvalidConfig, "aspect"))
		return
	}
	snap, err := s.snapshot(req)
	if err != nil {
		respondError(w, err)
		return
	}
	take, err := s.deps.Recorder.Start(r.Context(), snap, policy)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, take)
}

type deliveryView struct {
	ID          string    `json:"id"`
	Path        string    `json:"path,omitempty"`
	Title       string    `json:"title"`
	Aspect      string    `json:"aspect"`
	Orientation string    `json:"orientation"`
	Cropped     bool      `json:"cropped"`
	Started     time.Time `json:"started"`
	Stopped     time.Time `json:"stopped"`
	Error       string    `json:"error,omitempty"`
}

func viewDelivery(d capture.Delivery) deliveryView {
	v := deliveryView{
		ID:          d.Result.ID,
		Path:        d.Path,
		Title:       d.Result.Title,
		Aspect:      d.Result.Aspect.Name,
		Orientation: d.Result.Orientation.String(),
		Cropped:     d.Cropped,
		Started:     d.Result.Started,
		Stopped:     d.Result.Stopped,
	}
	if d.Err != nil {
		v.Error = perr.WireFrom(d.Err).Message
	}
	return v
}

// handleStop stops the take. With ?wait=true the response carries the
// delivery; otherwise it returns as soon as finalization has begun.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	p := s.deps.Recorder.Stop(r.Context())
	if p == nil {
		respond(w, http.StatusOK, map[string]bool{"stopping": false})
		return
	}
	if r.URL.Query().Get("wait") != "true" {
		respond(w, http.StatusAccepted, map[string]bool{"stopping": true})
		return
	}
	d, err := p.Wait(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, viewDelivery(d))
}

func (s *Server) handleLast(w http.ResponseWriter, _ *http.Request) {
	d, ok := s.deps.Library.Last()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respond(w, http.StatusOK, viewDelivery(d))
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.deps.Library.List()
	if err != nil {
		respondError(w, err)
		return
	}
	if entries == nil {
		entries = []library.Entry{}
	}
	respond(w, http.StatusOK, entries)
}

type aspectRequest struct {
	Aspect string `json:"aspect" validate:"required"`
}

func (s *Server) handleAspect(w http.ResponseWriter, r *http.Request) {
	var req aspectRequest
	if err := bind(r, &req); err != nil {
		respondError(w, err)
		return
	}
	policy, err := aspect.Parse(req.Aspect)
	if err != nil {
		respondError(w, perr.Wrap(err, perr.ErrorCodeInvalidConfig, "aspect"))
		return
	}
	if !s.deps.Recorder.SetAspect(policy) {
		respondError(w, perr.NotReadyf("no recording in progress"))
		return
	}
	respond(w, http.StatusOK, map[string]string{"aspect": policy.Name})
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := bind(r, &req); err != nil {
		respondError(w, err)
		return
	}
	snap, err := s.snapshot(req)
	if err != nil {
		respondError(w, err)
		return
	}
	if !s.deps.Recorder.UpdateScript(snap) {
		respondError(w, perr.NotReadyf("no recording in progress"))
		return
	}
	respond(w, http.StatusOK, snap)
}

type orientationRequest struct {
	Orientation string `json:"orientation" validate:"required"`
}

func (s *Server) handleOrientation(w http.ResponseWriter, r *http.Request) {
	var req orientationRequest
	if err := bind(r, &req); err != nil {
		respondError(w, err)
		return
	}
	o, err := capture.ParseOrientation(req.Orientation)
	if err != nil {
		respondError(w, perr.Wrap(err, perr.ErrorCodeInvalidConfig, "orientation"))
		return
	}
	s.deps.Attitude.Set(o)
	applied := s.deps.Session.UpdateOrientation()
	respond(w, http.StatusOK, map[string]string{"orientation": applied.String()})
}

type scriptRequest struct {
	Title     string   `json:"title" validate:"required,max=200"`
	Content   string   `json:"content"`
	TimeLimit *float64 `json:"timeLimit" validate:"omitempty,gte=0,lte=86400"`
}

func (s *Server) handleSaveScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if err := bind(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := os.MkdirAll(s.deps.ScriptsDir, 0755); err != nil {
		respondError(w, perr.Wrap(err, perr.ErrorCodeWriteFailed, "scripts dir"))
		return
	}
	sc := script.New(req.Title, req.Content, req.TimeLimit)
	if err := script.Write(&sc, script.PathFor(s.deps.ScriptsDir, &sc)); err != nil {
		respondError(w, perr.Wrap(err, perr.ErrorCodeWriteFailed, "save script"))
		return
	}
	respond(w, http.StatusCreated, sc)
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.loadScript(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, sc)
}
