package main

import (
	"log"

	"github.com/nrkitap/adboard/internal/auth"
	"github.com/nrkitap/adboard/internal/config"
	"github.com/nrkitap/adboard/internal/logging"
	"github.com/nrkitap/adboard/internal/photostore"
	"github.com/nrkitap/adboard/internal/photostore/local"
	"github.com/nrkitap/adboard/internal/photostore/s3"
	"github.com/nrkitap/adboard/internal/service"
	"github.com/nrkitap/adboard/internal/store"
	"github.com/nrkitap/adboard/internal/web"
	"github.com/nrkitap/adboard/internal/web/templates"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	photos, err := newPhotoStore(cfg)
	if err != nil {
		logger.Error("failed to initialize photo store", "backend", cfg.PhotoBackend, "error", err)
		return
	}

	repo := store.NewSubmissionStore(cfg.CSVPath())
	policy := service.NewUploadPolicy(cfg.MaxFiles, cfg.MaxFileMB, cfg.MaxTotalMB)
	svc := service.NewSubmissionService(repo, photos, policy, logger)

	sessions := auth.NewManager(cfg.SecretKey, cfg.AdminKey)
	if !sessions.AdminEnabled() {
		logger.Warn("ADMIN_KEY is not set, admin area is disabled")
	}

	server := web.NewServer(svc, sessions, photos, templates.FS, web.Options{
		MaxListings:    cfg.MaxListings,
		MaxUploadBytes: int64(cfg.MaxTotalMB) << 20,
	}, logger)

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func newPhotoStore(cfg *config.Config) (photostore.Store, error) {
	switch cfg.PhotoBackend {
	case "s3":
		return s3.New(cfg)
	default:
		return local.New(cfg.UploadsDir)
	}
}
