package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lunchroulette/lunchroulette/internal/config"
	"github.com/lunchroulette/lunchroulette/internal/emitter"
	"github.com/lunchroulette/lunchroulette/internal/karma"
	"github.com/lunchroulette/lunchroulette/internal/logger"
	"github.com/lunchroulette/lunchroulette/internal/market"
	"github.com/lunchroulette/lunchroulette/internal/models"
	"github.com/lunchroulette/lunchroulette/internal/roster"
	"github.com/lunchroulette/lunchroulette/internal/store"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

// app wires the engine components to the cycle scheduler.
type app struct {
	cfg     *config.Config
	ledger  *karma.Ledger
	roster  *roster.Manager
	market  *market.Engine
	emitter *emitter.Emitter
	store   *store.Store

	lastReset   time.Time
	lotteryAt   time.Time
	lastPersist time.Time
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	ledger := karma.NewLedger(cfg.Karma.DailyTransferCap)
	rosterManager := roster.NewManager(ledger, nil)
	marketEngine := market.NewEngine(ledger, rosterManager)
	karmaEmitter := emitter.New(ledger, cfg.Karma.EmissionInterval)

	st := store.New(cfg.Storage.FilePath)
	state, err := st.Load()
	if err != nil {
		logger.Fatal("Failed to load persisted state: %v", err)
	}
	if state != nil {
		ledger.Restore(state.Balances, state.DailyTransferred)
		rosterManager.Restore(state.Considered, state.OptedIn, state.Won, state.Wagers, state.Assigned)
		marketEngine.Restore(state.Orders, state.Transactions)
		karmaEmitter.SetLastEmission(state.LastEmission)
		logger.Info("Restored state saved at %s (%d candidates, %d open orders)",
			state.SavedAt.Format(time.RFC3339), len(state.Considered), len(state.Orders))
	} else {
		logger.Info("No persisted state found, starting fresh")
	}

	a := &app{
		cfg:         cfg,
		ledger:      ledger,
		roster:      rosterManager,
		market:      marketEngine,
		emitter:     karmaEmitter,
		store:       st,
		lastPersist: time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting allocation service (capacity: %d, reset hour: %02d:00, lottery delay: %v, match interval: %v)",
		cfg.Lottery.Capacity, cfg.Schedule.CycleResetHour, cfg.Schedule.LotteryDelay, cfg.Schedule.MatchInterval)

	ticker := time.NewTicker(cfg.Schedule.MatchInterval)
	defer ticker.Stop()

	a.tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			a.persist()
			logger.Info("Service stopped")
			return
		case tickTime := <-ticker.C:
			a.tick(tickTime)
		}
	}
}

// tick runs one scheduler pass: cycle reset, lottery draw, order matching,
// karma emission, and periodic persistence, each when due.
func (a *app) tick(now time.Time) {
	if now.Hour() == a.cfg.Schedule.CycleResetHour && !sameDay(a.lastReset, now) {
		a.market.Reset()
		a.roster.ResetCycle()
		a.lastReset = now
		a.lotteryAt = now.Add(a.cfg.Schedule.LotteryDelay)
		logger.Info("Cycle reset: %d candidates invited, lottery at %s",
			len(a.roster.Considered()), a.lotteryAt.Format(time.Kitchen))
	}

	if !a.lotteryAt.IsZero() && !now.Before(a.lotteryAt) && !a.roster.Assigned() {
		a.runLottery()
		a.lotteryAt = time.Time{}
	}

	for {
		tx := a.market.Execute()
		if tx == nil {
			break
		}
		logger.Info("Trade settled: %s sold slot to %s for %d karma", tx.Seller, tx.Buyer, tx.Price)
		a.persist()
	}

	if a.emitter.ShouldEmit() {
		emitted := a.emitter.Emit(
			models.UserID(a.cfg.Karma.EmissionPool),
			a.roster.Considered(),
			a.cfg.Karma.EmissionCap,
		)
		if emitted > 0 {
			logger.Info("Emitted %d karma from pool %q", emitted, a.cfg.Karma.EmissionPool)
			a.persist()
		}
	}

	if now.Sub(a.lastPersist) >= a.cfg.Storage.PersistenceInterval {
		a.persist()
	}
}

func (a *app) runLottery() {
	entrants := a.roster.OptedIn()
	if len(entrants) < a.cfg.Lottery.MinWinners {
		logger.Info("Only %d entrants (minimum %d), drawing anyway for the record",
			len(entrants), a.cfg.Lottery.MinWinners)
	}

	winners, err := a.roster.RunLottery(a.cfg.Lottery.Capacity)
	if err != nil {
		logger.Error("Lottery failed: %v", err)
		return
	}
	logger.Info("Lottery drawn: %d winners of %d entrants: %v", len(winners), len(entrants), winners)
	if losers := a.roster.Losers(); len(losers) > 0 {
		logger.Info("Missed out today: %v", losers)
	}
	if out := a.roster.OptedOut(); len(out) > 0 {
		logger.Debug("Did not opt in: %v", out)
	}
	a.persist()
}

func (a *app) persist() {
	balances, daily := a.ledger.Snapshot()
	considered, optedIn, won, wagers, assigned := a.roster.Snapshot()
	orders, transactions := a.market.Snapshot()

	state := &store.State{
		Balances:         balances,
		DailyTransferred: daily,
		Considered:       considered,
		OptedIn:          optedIn,
		Won:              won,
		Wagers:           wagers,
		Assigned:         assigned,
		Orders:           orders,
		Transactions:     transactions,
		LastEmission:     a.emitter.LastEmission(),
	}
	if err := a.store.Save(state); err != nil {
		logger.Error("Failed to persist state: %v", err)
		return
	}
	a.lastPersist = time.Now()
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
