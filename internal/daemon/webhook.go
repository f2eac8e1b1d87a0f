package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"marquee/internal/config"
	"marquee/internal/logging"
	"marquee/internal/services"
	"marquee/internal/services/twilio"
)

// errorReply is the TwiML body returned when the agent cannot produce a
// response at all.
const errorReply = "Sorry, something went wrong. Please try again in a moment."

type webhookServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newWebhookServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*webhookServer, error) {
	bind := strings.TrimSpace(cfg.Webhook.Bind)
	if bind == "" {
		return nil, errors.New("webhook bind address is required")
	}

	srv := &webhookServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Webhook.AuthToken),
		logger: logging.NewComponentLogger(logger, "webhook"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sms/webhook", srv.handleInbound)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/status", authMiddleware(srv.token, srv.handleStatus))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *webhookServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("webhook server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *webhookServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *webhookServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// handleInbound receives a Twilio form POST for one SMS, runs it through the
// conversational agent, and answers with TwiML so Twilio relays the reply.
func (s *webhookServer) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form payload", http.StatusBadRequest)
		return
	}

	from := strings.TrimSpace(r.PostFormValue("From"))
	body := strings.TrimSpace(r.PostFormValue("Body"))
	if from == "" {
		http.Error(w, "missing From parameter", http.StatusBadRequest)
		return
	}

	correlationID := uuid.NewString()
	ctx := services.WithRequestID(r.Context(), correlationID)
	logger := s.logger.With(
		logging.String(logging.FieldCorrelationID, correlationID),
		logging.String(logging.FieldPhone, from))
	logger.Info("inbound sms received", logging.Int("length", len(body)))

	reply, err := s.daemon.agent.HandleMessage(ctx, from, body)
	status := http.StatusOK
	if err != nil {
		logger.Error("agent failed to answer", logging.Error(err))
		reply = errorReply
		status = http.StatusInternalServerError
	} else {
		logger.Info("reply ready", logging.Int("length", len(reply)))
	}

	s.writeTwiML(w, status, reply)
}

func (s *webhookServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *webhookServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, statusPayload{
		Running:      status.Running,
		WebhookAddr:  status.WebhookAddr,
		DatabasePath: status.DatabasePath,
		Requests: requestCounts{
			Total:       status.Requests.Total,
			Pending:     status.Requests.Pending,
			Unreleased:  status.Requests.Unreleased,
			Queued:      status.Requests.Queued,
			Downloading: status.Requests.Downloading,
			Completed:   status.Requests.Completed,
			Failed:      status.Requests.Failed,
		},
	})
}

type statusPayload struct {
	Running      bool          `json:"running"`
	WebhookAddr  string        `json:"webhook_addr"`
	DatabasePath string        `json:"database_path"`
	Requests     requestCounts `json:"requests"`
}

type requestCounts struct {
	Total       int `json:"total"`
	Pending     int `json:"pending_lookup"`
	Unreleased  int `json:"not_yet_released"`
	Queued      int `json:"queued"`
	Downloading int `json:"downloading"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

func (s *webhookServer) writeTwiML(w http.ResponseWriter, status int, message string) {
	payload, err := twilio.ReplyTwiML(message)
	if err != nil {
		s.logger.Error("failed to render twiml", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		s.logger.Error("failed to write twiml response", logging.Error(err))
	}
}

func (s *webhookServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}
