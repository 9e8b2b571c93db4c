package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tbot/internal/api"
	"tbot/internal/chat"
	"tbot/internal/config"
	"tbot/internal/db"
	"tbot/pkg/activity"
	"tbot/pkg/notify"
	"tbot/pkg/task"
	"tbot/pkg/user"
	"tbot/pkg/workflow"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	users := cfg.Directory()
	store := task.NewStore()
	var actLog activity.Log = activity.NewMemLog()
	opts := []workflow.Option{
		workflow.WithAdmin(cfg.AdminID),
		workflow.WithProjects(cfg.Projects),
		workflow.WithLocation(cfg.Location()),
	}

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()

		persister, pgLog := restore(ctx, pool, store, users)
		actLog = pgLog
		opts = append(opts, workflow.WithPersister(persister))
	} else {
		log.Println("tbot: no database configured, state is kept in memory")
	}

	bus := activity.NewBus(actLog)
	hub := chat.NewHub(chat.DefaultHubConfig())
	defer hub.Close()

	senders := notify.Multi{hub}
	if cfg.NATSURL != "" {
		ncfg := chat.DefaultNATSConfig()
		ncfg.URL = cfg.NATSURL
		ncfg.Token = cfg.Token
		conn, err := chat.ConnectNATS(ncfg)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer conn.Drain()
		senders = append(senders, chat.NewNATSSender(conn))
		log.Printf("tbot: publishing notifications to %s", cfg.NATSURL)
	}

	opts = append(opts, workflow.WithActivityLog(bus), workflow.WithSender(senders))
	svc := workflow.New(store, users, opts...)

	go workflow.NewSweeper(svc, cfg.SweepInterval.Duration).Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.New(svc, bus, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Signal handling
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		log.Printf("tbot: received %s, shutting down", sig)
		cancel()
		hub.Close()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("tbot: shutdown: %v", err)
		}
	}()

	log.Printf("tbot listening on :%s (%d users, %d tasks)", cfg.Port, len(users.List()), store.Count())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
}

// restore creates the tables, loads the roster and replays persisted tasks.
// An empty users table is seeded from the configured roster.
func restore(ctx context.Context, pool *pgxpool.Pool, store *task.Store, users *user.Directory) (*task.PgStore, *activity.PgStore) {
	tasks := task.NewPgStore(pool)
	acts := activity.NewPgStore(pool)
	roster := user.NewPgStore(pool)

	// Ensure tables exist
	if err := tasks.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure tasks table: %v", err)
	}
	if err := acts.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure activity table: %v", err)
	}
	if err := roster.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure users table: %v", err)
	}

	records, err := roster.List(ctx)
	if err != nil {
		log.Fatalf("load users: %v", err)
	}
	if len(records) == 0 {
		for _, r := range users.Records() {
			if err := roster.Upsert(ctx, r); err != nil {
				log.Fatalf("seed users: %v", err)
			}
		}
		log.Printf("tbot: seeded %d users", len(users.List()))
	} else {
		users.Load(records)
	}

	saved, lastID, err := tasks.LoadAll(ctx)
	if err != nil {
		log.Fatalf("load tasks: %v", err)
	}
	store.Restore(saved, lastID)
	log.Printf("tbot: restored %d tasks (last id %d)", len(saved), lastID)

	if err := acts.VerifyChain(ctx); err != nil {
		log.Printf("tbot: activity chain: %v", err)
	}
	return tasks, acts
}
