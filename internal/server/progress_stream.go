package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/tourguard/riskcast/internal/training"
)

// subscribe claims the single progress stream, answering 409 when it is taken.
func (s *Server) subscribe(w http.ResponseWriter) (*training.Stream, bool) {
	stream, err := s.coordinator.Subscribe()
	if errors.Is(err, training.ErrStreamBusy) {
		s.writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success":    false,
			"error_kind": "stream_busy",
			"error":      err.Error(),
		})
		return nil, false
	}
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return stream, true
}

// handleProgressSSE streams training progress as Server-Sent Events until a
// terminal event or client disconnect. Idle intervals produce heartbeats.
// GET /api/ml/train/progress
func (s *Server) handleProgressSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	stream, ok := s.subscribe(w)
	if !ok {
		return
	}
	defer stream.Close()

	// The server write timeout would cut a long training run short.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.log.Info().Msg("Client connected to training progress stream")

	for {
		msg, err := stream.Next(r.Context())
		if err != nil {
			s.log.Info().Msg("Client disconnected from training progress stream")
			return
		}

		data := s.encodeProgress(msg)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if msg.Terminal() {
			s.log.Info().Str("status", msg.Event.Status).Msg("Training progress stream finished")
			return
		}
	}
}

// handleProgressWS carries the same messages as the SSE stream over a websocket.
// GET /api/ml/train/progress/ws
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	stream, ok := s.subscribe(w)
	if !ok {
		return
	}
	defer stream.Close()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// Reads are discarded; CloseRead cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		msg, err := stream.Next(ctx)
		if err != nil {
			s.log.Info().Msg("WebSocket client disconnected from training progress stream")
			return
		}

		data := s.encodeProgress(msg)

		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to write progress message")
			return
		}

		if msg.Terminal() {
			conn.Close(websocket.StatusNormalClosure, msg.Event.Status)
			return
		}
	}
}

// encodeProgress marshals a stream message. An event whose details cannot be
// encoded is still delivered, with the details replaced by the encoding error.
func (s *Server) encodeProgress(msg training.Message) []byte {
	data, err := json.Marshal(msg.Payload())
	if err == nil {
		return data
	}
	s.log.Error().Err(err).Msg("Failed to marshal progress event details")

	ev := *msg.Event
	ev.Details = map[string]interface{}{"details_error": err.Error()}
	if data, err = json.Marshal(ev); err == nil {
		return data
	}
	data, _ = json.Marshal(map[string]interface{}{
		"job_id":   ev.JobID,
		"status":   ev.Status,
		"progress": ev.Progress,
		"message":  ev.Message,
	})
	return data
}
