// Package main is the entry point for a single irrigation node. It loads
// configuration, wires every subsystem (relay drivers, weather provider,
// state manager, scheduler, controller core, HTTP surface), and blocks
// until an OS signal requests a graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	circ "github.com/lukassojak/Smart-Irrigation-System/internal/circuit"
	"github.com/lukassojak/Smart-Irrigation-System/internal/config"
	"github.com/lukassojak/Smart-Irrigation-System/internal/controller"
	"github.com/lukassojak/Smart-Irrigation-System/internal/events"
	"github.com/lukassojak/Smart-Irrigation-System/internal/executor"
	"github.com/lukassojak/Smart-Irrigation-System/internal/httpapi"
	"github.com/lukassojak/Smart-Irrigation-System/internal/jobhistory"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
	"github.com/lukassojak/Smart-Irrigation-System/internal/planner"
	"github.com/lukassojak/Smart-Irrigation-System/internal/relay"
	"github.com/lukassojak/Smart-Irrigation-System/internal/scheduler"
	"github.com/lukassojak/Smart-Irrigation-System/internal/statemanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/threadmanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weatherprovider"
	"github.com/lukassojak/Smart-Irrigation-System/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	log.Info().Str("data_dir", cfg.DataDir).Msg("starting irrigation node")

	production := cfg.Global.Automation.Environment == "production"

	drivers := make(map[int]relay.Driver)
	for _, c := range cfg.Circuits {
		if production {
			d, err := relay.NewGPIODriver(c.RelayPin, relay.DefaultSocketPath, log)
			if err != nil {
				log.Fatal().Err(err).Int("circuit_id", c.ID).Msg("failed to initialize relay driver")
			}
			drivers[c.ID] = d
		} else {
			drivers[c.ID] = relay.NewSimulatedDriver(c.RelayPin, log)
		}
	}

	var weather weatherprovider.Provider
	if cfg.Global.Automation.UseWeatherSimulator && !production {
		weather = weatherprovider.NewSimulator(cfg.Global.Standard)
		log.Info().Msg("using simulated weather provider")
	} else {
		ttl := time.Duration(cfg.Global.WeatherCacheTTLS) * time.Second
		weather = weatherprovider.NewClient(cfg.Global.WeatherEndpoints, ttl, cfg.Global.Standard, log)
	}

	bus := events.NewBus(log)
	threads := threadmanager.New(log)

	states := statemanager.New(cfg.DataDir, log)
	states.SetBus(bus)
	if err := states.InitFromDisk(cfg.Circuits); err != nil {
		log.Fatal().Err(err).Msg("failed to recover circuit state from disk")
	}

	circuits := make(map[int]*circ.Circuit)
	for _, c := range cfg.Circuits {
		circuits[c.ID] = circ.New(c, drivers[c.ID], bus, log)
	}

	history, err := openJobHistory(cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Msg("job history database unavailable, cadence tracking degraded to always-run")
	}

	p := planner.New(states, weather, planner.SingleBatch{}, log)
	exec := executor.New(threads, states, bus, weather, cfg.Global, log)
	sched := scheduler.New(threads, log)

	ctrl := controller.New(cfg.Global, circuits, drivers, threads, bus, states, weather, p, exec, sched, log)

	// refresh_state records its run in job history and does not itself
	// re-derive controller state; the controller does that on every
	// circuit start and finish event.
	sched.AddTask(scheduler.Task{
		Name:     "refresh_state",
		Interval: scheduler.RefreshStateInterval,
		Run: func(ctx context.Context) {
			if !history.ShouldRun(jobhistory.JobTypeRefreshState, scheduler.RefreshStateInterval) {
				return
			}
			_ = history.RecordExecution(jobhistory.JobTypeRefreshState, time.Now(), "success")
		},
	})
	sched.AddTask(scheduler.Task{
		Name:     "auto_irrigation_tick",
		Interval: scheduler.AutoIrrigationTickInterval,
		Run: func(ctx context.Context) {
			ctrl.AutoService().Tick(ctx, time.Now().UTC(), cfg.Global.Automation.AutoEnabled,
				cfg.Global.Automation.ScheduledHour, cfg.Global.Automation.ScheduledMinute)
			_ = history.RecordExecution(jobhistory.JobTypeAutoIrrigationTick, time.Now(), "success")
		},
	})
	sched.AddTask(scheduler.Task{
		Name:     "weather_cache_refresh",
		Interval: scheduler.WeatherCacheRefreshInterval,
		Run: func(ctx context.Context) {
			if !history.ShouldRun(jobhistory.JobTypeWeatherCacheRefresh, scheduler.WeatherCacheRefreshInterval) {
				return
			}
			weather.GetRecent(ctx, 7)
			_ = history.RecordExecution(jobhistory.JobTypeWeatherCacheRefresh, time.Now(), "success")
		},
	})
	sched.Start()
	log.Info().Msg("scheduler started")

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(ctrl, log),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http status/command surface listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down irrigation node")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}

	ctrl.Shutdown()
	_ = history.Close()

	log.Info().Msg("irrigation node stopped")
}

func openJobHistory(dataDir string) (*jobHistoryHandle, error) {
	path := fmt.Sprintf("%s/job_history.db", dataDir)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &jobHistoryHandle{History: jobhistory.NewHistory(nil)}, fmt.Errorf("open job history db: %w", err)
	}
	if err := jobhistory.EnsureSchema(db); err != nil {
		return &jobHistoryHandle{History: jobhistory.NewHistory(nil)}, err
	}
	return &jobHistoryHandle{db: db, History: jobhistory.NewHistory(db)}, nil
}

// jobHistoryHandle bundles the sqlite handle with the jobhistory.History it
// backs so main can close the database at shutdown.
type jobHistoryHandle struct {
	db *sql.DB
	*jobhistory.History
}

func (h *jobHistoryHandle) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}
