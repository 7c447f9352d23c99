package mailrelay

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bankledger/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type Server struct {
	mailer Mailer
	log    zerolog.Logger
}

func NewServer(mailer Mailer, log zerolog.Logger) *Server {
	return &Server{mailer: mailer, log: log.With().Str("component", "mailrelay").Logger()}
}

func (s *Server) Router(allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/send-email", s.sendEmail)
	return r
}

func (s *Server) sendEmail(w http.ResponseWriter, r *http.Request) {
	var msg notify.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if err := validate(msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	if err := s.mailer.Send(r.Context(), msg); err != nil {
		s.log.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).
			Str("request_id", middleware.GetReqID(r.Context())).Msg("send failed")
		status := http.StatusInternalServerError
		if errors.Is(err, errInvalidMessage) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"message": "Failed to send email", "error": err.Error()})
		return
	}

	s.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email sent successfully!"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
