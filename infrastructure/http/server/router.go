package server

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type HealthResponse struct {
	Status      string    `json:"status"`
	Rooms       int       `json:"rooms"`
	Connections int       `json:"connections"`
	Timestamp   time.Time `json:"timestamp"`
}

type RoomStats struct {
	Room        domain.RoomID `json:"room"`
	Connections int           `json:"connections"`
}

// NewRouter exposes the chat endpoint plus health, metrics and room introspection.
func NewRouter(log *slog.Logger, chat http.Handler, registry contract.IRegistry, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(log))
	r.Handle("/chat/ws/{roomId}", chat).Methods(http.MethodGet)
	r.HandleFunc("/health", handleHealth(registry)).Methods(http.MethodGet)
	r.HandleFunc("/debug/rooms", handleRooms(registry)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// loggingMiddleware leaves the ResponseWriter untouched so that upgrades can hijack it.
func loggingMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

func handleHealth(registry contract.IRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		connections := lo.Sum(lo.Values(registry.Stats()))
		response := HealthResponse{
			Status:      "UP",
			Rooms:       registry.RoomCount(),
			Connections: connections,
			Timestamp:   time.Now().UTC(),
		}
		writeJSON(w, response)
	}
}

// handleRooms lists live rooms, as JSON or as a text table with ?format=table.
func handleRooms(registry contract.IRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := registry.Stats()
		rooms := lo.Keys(stats)
		slices.Sort(rooms)
		rows := lo.Map(rooms, func(room domain.RoomID, _ int) RoomStats {
			return RoomStats{Room: room, Connections: stats[room]}
		})

		if r.URL.Query().Get("format") != "table" {
			writeJSON(w, rows)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Room", "Connections"})
		for _, row := range rows {
			table.Append([]string{string(row.Room), strconv.Itoa(row.Connections)})
		}
		table.SetFooter([]string{fmt.Sprintf("%d rooms", len(rows)), strconv.Itoa(lo.SumBy(rows, func(s RoomStats) int { return s.Connections }))})
		table.Render()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
