package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/townsquare/media_server/internal"
	"github.com/townsquare/media_server/internal/diag"
	"github.com/townsquare/media_server/internal/health"
	"github.com/townsquare/media_server/internal/journal"
	"github.com/townsquare/media_server/internal/keys"
	"github.com/townsquare/media_server/internal/mirror"
	"github.com/townsquare/media_server/internal/proxy"
	"github.com/townsquare/media_server/internal/resolve"
	"github.com/townsquare/media_server/internal/storage"
	"github.com/townsquare/media_server/internal/upload"
)

func main() {
	// .env is optional; the config file and real environment still apply
	_ = godotenv.Load()

	config, err := internal.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
		return
	}

	privateKey, publicKey, err := keys.DeriveRSAKeyPair(config.MasterPassword, config.ExternalURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Error deriving RSA keys")
		return
	}
	log.Info().Msg("RSA keys initialized successfully")

	db, err := internal.NewDB(config.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
		return
	}
	journalRepository := journal.NewJournalRepository(db)

	fs, err := storage.NewFilesystem(&config.Storage.Filesystem)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing filesystem backend")
		return
	}

	// Leave the interface nil when the store is disabled so the pipelines
	// skip object candidates entirely.
	var object storage.Backend
	var presigner proxy.Presigner
	var objectPinger health.Pinger
	if config.Storage.Object.Enabled {
		objectStorage, err := storage.NewObjectStorage(&config.Storage.Object)
		if err != nil {
			log.Fatal().Err(err).Msg("Error initializing object storage backend")
			return
		}
		object = objectStorage
		presigner = objectStorage
		objectPinger = objectStorage
		log.Info().Str("endpoint", config.Storage.Object.Endpoint).Msg("Object storage backend ready")
	} else {
		log.Warn().Msg("Object storage disabled, running filesystem-only")
	}

	mirrorQueue := mirror.NewQueue(object, fs, journalRepository, &config.Mirror)
	go mirrorQueue.Run()
	defer mirrorQueue.Stop()

	reconciler := mirror.NewReconciler(object, fs, journalRepository, &config.Mirror)
	reconciler.Start()
	defer reconciler.Stop()

	resolveOptions := resolve.Options{
		ObjectEnabled:     config.Storage.Object.Enabled,
		Roots:             fs.Roots(),
		FilesystemTimeout: time.Duration(config.Storage.Filesystem.TimeoutSec) * time.Second,
		ObjectTimeout:     time.Duration(config.Storage.Object.TimeoutSec) * time.Second,
	}
	resolver := resolve.NewResolver(object, fs, mirrorQueue, resolveOptions)

	uploadService := upload.NewUploadService(object, fs, journalRepository, &config.Storage)
	uploadEndpoints := upload.NewUploadEndpoints(uploadService)

	proxyService := proxy.NewProxyService(resolver, presigner, privateKey, &config.Proxy)
	proxyEndpoints := proxy.NewProxyEndpoints(resolver, proxyService, publicKey)

	diagService := diag.NewDiagService(object, fs, journalRepository, resolveOptions)
	diagEndpoints := diag.NewEndpoints(diagService, reconciler)

	healthEndpoints := health.NewEndpoints("1.0.0", fs, objectPinger)

	requestHandler := internal.NewRequestHandler(config, uploadEndpoints, proxyEndpoints, diagEndpoints, healthEndpoints)

	log.Info().Str("addr", config.ListenAddr).Msg("Starting media server")
	if err := fasthttp.ListenAndServe(config.ListenAddr, requestHandler); err != nil {
		log.Fatal().Err(err).Msg("Error starting server")
	}
}
