package server

import (
	"context"
	"errors"
	"log"
	"time"

	"backend-runtracker/internal/archive"
	"backend-runtracker/internal/config"
	"backend-runtracker/internal/kvstore"
	"backend-runtracker/internal/location"
	"backend-runtracker/internal/remote"
	"backend-runtracker/internal/sensor"
	"backend-runtracker/internal/stream"
	"backend-runtracker/internal/timeutil"
	"backend-runtracker/internal/tracking"
	"backend-runtracker/internal/upload"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub

	Store    kvstore.Store
	Location *location.HostSource
	Resolver *sensor.Resolver
	Sensors  *sensor.Registry
	Queue    *upload.Queue
	Sweeper  *upload.Sweeper
	Tracker  *tracking.Tracker
	// Archive is nil without postgres.
	Archive *archive.Store
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	clock := timeutil.RealClock{}
	store := newStore(cfg, db, redisClient)

	resolver := sensor.NewResolver(clock,
		sensor.WithStaleAfter(time.Duration(cfg.SensorStaleAfterMs)*time.Millisecond),
		sensor.WithBodyWeight(cfg.BodyWeightKg),
	)
	sensors := sensor.NewRegistry(resolver,
		[]sensor.Source{sensor.SourceWearable, sensor.SourcePhoneNative},
		[]sensor.Channel{sensor.HeartRate, sensor.Cadence, sensor.Calories},
	)

	api := remote.NewClient(cfg.RemoteAPIURL, remote.WithToken(cfg.RemoteAPIToken))
	queue := upload.NewQueue(store, clock)
	hub := stream.NewHub(redisClient)

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Stream:   hub,
		Store:    store,
		Location: location.NewHostSource(location.NewBuffer(store)),
		Resolver: resolver,
		Sensors:  sensors,
		Queue:    queue,
		Sweeper: upload.NewSweeper(queue, api, clock, cfg.UploadMaxAttempts,
			time.Duration(cfg.RetrySweepIntervalMs)*time.Millisecond),
	}

	opts := []tracking.Option{tracking.WithClock(clock), tracking.WithPublisher(hub)}
	if db != nil {
		s.Archive = archive.NewStore(db)
		opts = append(opts, tracking.WithArchive(s.Archive))
	}
	s.Tracker = tracking.New(s.Location, api, queue, resolver, trackingConfig(cfg), opts...)

	registerRoutes(s)
	return s
}

// Start runs the tracker loop and the upload sweeper until ctx is done.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.Tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("tracker stopped: %v", err)
		}
	}()
	go func() {
		if err := s.Sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("upload sweeper stopped: %v", err)
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case out := <-s.Tracker.Uploads():
				log.Printf("session %s hand-off: uploaded=%t queued=%t", out.SessionID, out.Uploaded, out.Queued)
			}
		}
	}()
}

func newStore(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) kvstore.Store {
	switch {
	case cfg.StoreBackend == config.StorePostgres && db != nil:
		return kvstore.NewPostgres(db)
	case cfg.StoreBackend == config.StoreRedis && redisClient != nil:
		return kvstore.NewRedis(redisClient)
	case cfg.StoreBackend != "" && cfg.StoreBackend != config.StoreMemory:
		log.Printf("store backend %q unavailable, falling back to memory", cfg.StoreBackend)
	}
	return kvstore.NewMemory()
}

// trackingConfig keeps the defaults for anything left unset.
func trackingConfig(cfg config.Config) tracking.Config {
	tc := tracking.DefaultConfig()
	if cfg.MaxAccuracyMeters > 0 {
		tc.Filter.MaxAccuracyMeters = cfg.MaxAccuracyMeters
	}
	if cfg.MinDistanceMeters > 0 {
		tc.Filter.MinDistanceMeters = cfg.MinDistanceMeters
		tc.Location.MinDistanceMeters = cfg.MinDistanceMeters
	}
	if cfg.MaxSpeedKmh > 0 {
		tc.Filter.MaxSpeedKmh = cfg.MaxSpeedKmh
	}
	if cfg.SegmentThresholdMeters > 0 {
		tc.SegmentThresholdMeters = cfg.SegmentThresholdMeters
	}
	if cfg.BackgroundPollIntervalMs > 0 {
		tc.PollInterval = time.Duration(cfg.BackgroundPollIntervalMs) * time.Millisecond
		tc.Location.IntervalMillis = cfg.BackgroundPollIntervalMs
	}
	if cfg.RemoteUpdateIntervalMs > 0 {
		tc.RemoteUpdateInterval = time.Duration(cfg.RemoteUpdateIntervalMs) * time.Millisecond
	}
	if cfg.PaceWindow > 0 {
		tc.PaceWindow = cfg.PaceWindow
	}
	return tc
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracker)
	location.RegisterRoutes(s.App.Group("/location"), s.Location)
	sensor.RegisterRoutes(s.App.Group("/sensors"), s.Sensors, s.Resolver)
	upload.RegisterRoutes(s.App.Group("/uploads"), s.Queue, s.Sweeper)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
	if s.Archive != nil {
		archive.RegisterRoutes(s.App.Group("/archive"), s.Archive)
	}
}
