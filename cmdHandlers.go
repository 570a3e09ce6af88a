package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gunshot-detection/chat"
	"gunshot-detection/db"
	"gunshot-detection/detections"
	"gunshot-detection/gunshot"
	"gunshot-detection/models"
	"gunshot-detection/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

func newAudioAnalysisHandler(pipeline *gunshot.Pipeline, persistRecordings bool) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var recData models.RecordData
		if err := json.NewDecoder(r.Body).Decode(&recData); err != nil {
			logger.ErrorContext(ctx, "failed to parse request body", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		if recData.Audio == "" {
			logger.ErrorContext(ctx, "no audio data received")
			writeJSONError(w, http.StatusBadRequest, "no audio data received")
			return
		}

		cfg := gunshot.ConfigFromEnv()
		audioSample, err := gunshot.PrepareAudioSample(recData, cfg.SampleRate, persistRecordings)
		if err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "failed to prepare audio sample", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "unable to decode audio")
			return
		}

		logger.InfoContext(ctx, "prepared audio sample",
			slog.Int("sampleRate", audioSample.SampleRate),
			slog.Int("frameCount", len(audioSample.Samples)),
			slog.Float64("duration", audioSample.Duration),
			slog.Bool("persisted", audioSample.Persisted != ""),
		)

		summary, err := pipeline.Analyze(audioSample.Samples, audioSample.SampleRate, audioSample.Persisted)
		if err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "analysis failed", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "analysis error")
			return
		}
		summary.SNRDb = audioSample.SNRDb

		if summary.GunshotCount > 0 {
			if detection := detectionFromSummary(summary, recData.Latitude, recData.Longitude); detection != nil {
				if err := detections.SaveDetection(detection); err != nil {
					log.Printf("[HTTP] Failed to save detection: %v\n", err)
				}
			}
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

func newDetectionsHandler() http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		q := r.URL.Query()
		latStr, lngStr := q.Get("lat"), q.Get("lng")
		if latStr != "" && lngStr != "" {
			lat, errLat := strconv.ParseFloat(latStr, 64)
			lng, errLng := strconv.ParseFloat(lngStr, 64)
			if errLat != nil || errLng != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid coordinates")
				return
			}
			radiusKm := 5.0
			if radiusStr := q.Get("radius_km"); radiusStr != "" {
				if v, err := strconv.ParseFloat(radiusStr, 64); err == nil && v > 0 {
					radiusKm = v
				}
			}
			near, err := detections.LoadDetectionsNear(lat, lng, radiusKm)
			if err != nil {
				logger.ErrorContext(ctx, "failed to load detections", slog.Any("error", err))
				writeJSONError(w, http.StatusInternalServerError, "failed to load detections")
				return
			}
			writeJSON(w, http.StatusOK, near)
			return
		}

		detectionsList, err := detections.LoadDetections()
		if err != nil {
			logger.ErrorContext(ctx, "failed to load detections", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load detections")
			return
		}
		writeJSON(w, http.StatusOK, detectionsList)
	}
}

// newIncidentSummaryHandler reports a natural-language summary of the most
// recent detection. Requires a configured Gemini API key.
func newIncidentSummaryHandler(gemini *chat.GeminiClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if gemini == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "summary service not configured")
			return
		}

		detectionsList, err := detections.LoadDetections()
		if err != nil || len(detectionsList) == 0 {
			writeJSONError(w, http.StatusNotFound, "no detections recorded")
			return
		}

		summary, err := gemini.SummarizeIncident(&detectionsList[0])
		if err != nil {
			logger.ErrorContext(ctx, "failed to summarize incident", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to summarize incident")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
	}
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	cfg := gunshot.ConfigFromEnv()
	pipeline, err := gunshot.LoadPipeline(cfg)
	if err != nil {
		log.Fatalf("failed to load detection pipeline: %v", err)
	}
	defer pipeline.Close()

	if dbClient, err := db.NewDBClient(); err != nil {
		log.Printf("database unavailable, using file store: %v\n", err)
	} else {
		detections.SetClient(dbClient)
		defer dbClient.Close()
	}

	var gemini *chat.GeminiClient
	if g, err := chat.NewGeminiClient(); err != nil {
		log.Printf("incident summaries disabled: %v\n", err)
	} else {
		gemini = g
	}

	persistRecordings := strings.EqualFold(utils.GetEnv("GUNSHOT_PERSIST_RECORDINGS", "true"), "true")
	controller := newSocketController(pipeline, gemini, persistRecordings)

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		connURL := socket.URL()
		log.Printf("CONNECTED: %s, transport: %s, remote addr: %s\n", socket.ID(), connURL.String(), socket.RemoteAddr())
		return nil
	})

	server.OnEvent("/", "newRecording", func(socket socketio.Conn, msg string) {
		// Run handler in goroutine to prevent blocking, with panic recovery
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in handleNewRecording for socket %s: %v\n", socket.ID(), r)
					socket.Emit("analysisError", map[string]string{"message": "internal server error during processing"})
				}
			}()
			controller.handleNewRecording(socket, msg)
		}()
	})

	server.OnEvent("/", "chatMessage", func(socket socketio.Conn, msg string) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in handleChatMessage for socket %s: %v\n", socket.ID(), r)
					socket.Emit("chatError", map[string]string{"message": "internal server error during chat"})
				}
			}()
			controller.handleChatMessage(socket, msg)
		}()
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTPS := protocol == "https"

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	mux.HandleFunc("/api/audio/analyze", newAudioAnalysisHandler(pipeline, persistRecordings))
	mux.HandleFunc("/api/detections", newDetectionsHandler())
	mux.HandleFunc("/api/detections/summary", newIncidentSummaryHandler(gemini))
	mux.Handle("/", http.FileServer(http.Dir("static")))

	serveHTTP(server, serveHTTPS, port, mux)
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY", "")
		certFile := utils.GetEnv("CERT_FILE", "")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
