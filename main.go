package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/auth"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/config"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/database"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/gemini"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/ledger"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/ratelimit"
	commonredis "github.com/kaiquenogueira/dream-space-sub000/modules/common/redis"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/storage"
	"github.com/kaiquenogueira/dream-space-sub000/modules/common/utils"
	"github.com/kaiquenogueira/dream-space-sub000/modules/dronetour"
	"github.com/kaiquenogueira/dream-space-sub000/modules/mediaproxy"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
	"github.com/kaiquenogueira/dream-space-sub000/modules/redesign"
)

const mediaProxyPath = "/api/media/proxy"

// CORS middleware
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Health check endpoint
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "dream-space-generation",
	})
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Shared infrastructure clients
	redisClient := commonredis.Connect(cfg)
	db := database.NewClient()
	if db == nil {
		log.Fatal("❌ Failed to initialize database client")
	}
	creditLedger := ledger.NewLedger()
	if creditLedger == nil {
		log.Fatal("❌ Failed to initialize credit ledger")
	}
	artifactStore := storage.NewClient()
	verifier := auth.NewVerifier()
	backend, err := gemini.NewBackend(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini backend: %v", err)
	}
	limiter := ratelimit.New(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)

	// The orchestrator everything routes through
	p := pipeline.New(pipeline.Config{
		ImageCreditCost:     cfg.ImageCreditCost,
		DroneTourCreditCost: cfg.DroneTourCreditCost,
		FreeTierDroneTours:  cfg.FreeTierDroneTours,
		SignedURLTTL:        cfg.SignedURLTTL,
		MaxUploadBytes:      cfg.MaxUploadBytes,
		AllowedSourceHost:   cfg.StorageHost(),
		MediaProxyPath:      mediaProxyPath,
		ImageModel:          cfg.GeminiImageModel,
		VideoModel:          cfg.GeminiVideoModel,
		ImageCostUSD:        cfg.ImageCostUSD,
		VideoCostUSD:        cfg.VideoCostUSD,
	}, pipeline.Deps{
		Auth:     verifier,
		Accounts: db,
		Ledger:   creditLedger,
		Limiter:  limiter,
		Store:    artifactStore,
		Backend:  backend,
		Records:  db,
		Metrics:  db,
		Compress: func(png []byte) ([]byte, error) {
			return utils.ConvertToWebP(png, cfg.WebPQuality)
		},
	})

	redesignHandler := redesign.NewHandler(p)
	droneTourHandler := dronetour.NewHandler(p)
	proxyHandler := mediaproxy.NewHandler(verifier)

	// Router setup
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/api/redesign/generate", redesignHandler.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/drone-tour/generate", droneTourHandler.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/drone-tour/status", droneTourHandler.HandleStatus).Methods("GET", "OPTIONS")
	r.HandleFunc(mediaProxyPath, proxyHandler.HandleProxy).Methods("GET", "OPTIONS")

	log.Printf("🚀 DreamSpace Generation Server starting on port %s", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🏠 Redesign: POST http://localhost:%s/api/redesign/generate", cfg.Port)
	log.Printf("🚁 Drone tour: POST http://localhost:%s/api/drone-tour/generate", cfg.Port)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
