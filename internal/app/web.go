package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/events"
	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/sensors"
	"github.com/relabs-tech/arfusion/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// latestPose holds the last pose received from the fusion daemon.
type latestPose struct {
	mu   sync.RWMutex
	pose orientation.Pose
	have bool
}

func (l *latestPose) set(p orientation.Pose) {
	l.mu.Lock()
	l.pose = p
	l.have = true
	l.mu.Unlock()
}

func (l *latestPose) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.have {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(l.pose); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// sessionHandler runs one fusion pipeline per browser websocket session.
type sessionHandler struct {
	cfg          config.Config
	metrics      *telemetry.Metrics
	interval     time.Duration
	readyTimeout time.Duration
}

func newSessionHandler(cfg config.Config, m *telemetry.Metrics) *sessionHandler {
	return &sessionHandler{
		cfg:          cfg,
		metrics:      m,
		interval:     cfg.Fusion.UpdateInterval,
		readyTimeout: 10 * time.Second,
	}
}

func (h *sessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	h.metrics.SessionOpened()
	defer h.metrics.SessionClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := sensors.NewBrowserEnvironment(conn)
	go func() {
		if err := env.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("web: session ended: %v", err)
		}
	}()

	select {
	case <-env.Ready():
	case <-env.Done():
		return
	case <-time.After(h.readyTimeout):
		log.Printf("web: session sent no capabilities within %s", h.readyTimeout)
		return
	}

	caps := env.Capabilities()
	controls := orientation.NewControls(env, h.cfg.Controls(caps.AppleMobile),
		orientation.WithPrompter(env),
		orientation.WithMetrics(h.metrics),
	)
	defer controls.Close()

	sendStatus := func(e events.Event) {
		if err := env.SendStatus(string(controls.PermissionState()), string(e.Code), e.Message); err != nil {
			log.Printf("web: send status: %v", err)
		}
	}
	controls.Bus().On(events.Granted, sendStatus)
	controls.Bus().On(events.Error, sendStatus)

	if err := controls.Init(); err != nil {
		log.Printf("web: init: %v", err)
		return
	}
	if !controls.PermissionState().Terminal() {
		sendStatus(events.Event{})
	}
	log.Printf("web: session started (%s, %s)", controls.Strategy().Name(), controls.PermissionState())

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var q quat.Number
	for {
		select {
		case <-env.Done():
			log.Printf("web: session closed")
			return
		case <-ticker.C:
			if !controls.Update(&q) {
				continue
			}
			if err := env.SendPose(orientation.PoseFromQuaternion(q, controls.Heading())); err != nil {
				log.Printf("web: send pose: %v", err)
			}
		}
	}
}

// newWebMux wires the HTTP routes.
func newWebMux(cfg config.Config, m *telemetry.Metrics, latest *latestPose) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/orientation", latest)
	mux.Handle("/ws/orientation", newSessionHandler(cfg, m))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", http.FileServer(http.Dir(cfg.Web.StaticDir)))
	return mux
}

// RunWeb serves the browser bridge, the latest pose from the fusion daemon,
// metrics and the static AR page until ctx is cancelled.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}
	metrics := telemetry.Default()
	latest := &latestPose{}

	client, err := connectMQTT(cfg.MQTT, "web")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.MQTT.Topics.Pose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("web: MQTT payload unmarshal error: %v", err)
			return
		}
		latest.set(p)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.MQTT.Topics.Pose)

	srv := &http.Server{Addr: cfg.Web.Listen, Handler: newWebMux(*cfg, metrics, latest)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web: listening on %s", cfg.Web.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
