package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/opd-ai/rtpmidi/config"
	"github.com/opd-ai/rtpmidi/peer"
	"github.com/opd-ai/rtpmidi/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// version is reported by the status endpoint.
const version = "0.1.0"

// peerRegistry is the part of transport.Server the HTTP API needs.
type peerRegistry interface {
	Peers() []peer.Stats
	RemovePeer(ssrc uint32) error
}

// statusView is the JSON document served at /status.
type statusView struct {
	Version  string       `json:"version"`
	Settings settingsView `json:"settings"`
	Peers    []peerView   `json:"peers"`
}

type settingsView struct {
	Name           string `json:"name"`
	ControlAddress string `json:"control_address"`
	MidiAddress    string `json:"midi_address"`
	MaxPeers       int    `json:"max_peers"`
}

type peerView struct {
	Status          string  `json:"status"`
	RemoteName      string  `json:"remote_name"`
	RemoteSSRC      string  `json:"remote_ssrc"`
	LocalSSRC       string  `json:"local_ssrc"`
	InitiatorID     string  `json:"initiator_id"`
	LatencyMS       float64 `json:"latency_ms"`
	PacketsReceived uint64  `json:"packets_received"`
	PacketsLost     uint64  `json:"packets_lost"`
	SendSequence    uint16  `json:"send_sequence"`
	RemoteSequence  uint16  `json:"remote_sequence"`
}

func newPeerView(st peer.Stats) peerView {
	return peerView{
		Status:          st.Status.String(),
		RemoteName:      st.RemoteName,
		RemoteSSRC:      fmt.Sprintf("%08X", st.RemoteSSRC),
		LocalSSRC:       fmt.Sprintf("%08X", st.LocalSSRC),
		InitiatorID:     fmt.Sprintf("%08X", st.InitiatorID),
		LatencyMS:       float64(st.Latency.Microseconds()) / 1000,
		PacketsReceived: st.PacketsReceived,
		PacketsLost:     st.PacketsLost,
		SendSequence:    st.SendSequenceNr,
		RemoteSequence:  st.RemoteSequenceNr,
	}
}

// apiHandler serves the operator HTTP API: Prometheus metrics, daemon
// status and peer removal.
type apiHandler struct {
	cfg    *config.Config
	peers  peerRegistry
	logger *logrus.Logger
}

// newAPIHandler builds the HTTP routes.
func newAPIHandler(cfg *config.Config, gatherer prometheus.Gatherer, peers peerRegistry, logger *logrus.Logger) http.Handler {
	h := &apiHandler{cfg: cfg, peers: peers, logger: logger}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("DELETE /peers/{ssrc}", h.handleRemovePeer)
	return mux
}

func (h *apiHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.peers.Peers()
	view := statusView{
		Version: version,
		Settings: settingsView{
			Name:           h.cfg.Name,
			ControlAddress: h.cfg.ControlAddress(),
			MidiAddress:    h.cfg.MidiAddress(),
			MaxPeers:       h.cfg.MaxPeers,
		},
		Peers: make([]peerView, 0, len(stats)),
	}
	for _, st := range stats {
		view.Peers = append(view.Peers, newPeerView(st))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		h.logger.WithFields(logrus.Fields{
			"function": "handleStatus",
			"error":    err.Error(),
		}).Warn("Failed to write status")
	}
}

func (h *apiHandler) handleRemovePeer(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(strings.ToLower(r.PathValue("ssrc")), "0x")
	ssrc, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid ssrc %q", r.PathValue("ssrc")), http.StatusBadRequest)
		return
	}

	logger := h.logger.WithFields(logrus.Fields{
		"function":    "handleRemovePeer",
		"remote_ssrc": fmt.Sprintf("%08X", ssrc),
	})

	switch err := h.peers.RemovePeer(uint32(ssrc)); {
	case err == nil:
		logger.Info("Peer removed by operator")
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, transport.ErrUnknownPeer):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, transport.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logger.WithField("error", err.Error()).Error("Failed to remove peer")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
