// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/config"
	"github.com/rovshanmuradov/tokensale/internal/events"
	"github.com/rovshanmuradov/tokensale/internal/logger"
	"github.com/rovshanmuradov/tokensale/internal/metrics"
	"github.com/rovshanmuradov/tokensale/internal/monitor"
	"github.com/rovshanmuradov/tokensale/internal/report"
	"github.com/rovshanmuradov/tokensale/internal/sale"
	"github.com/rovshanmuradov/tokensale/internal/scenario"
	"github.com/rovshanmuradov/tokensale/internal/token"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/rovshanmuradov/tokensale/internal/units"
	"github.com/rovshanmuradov/tokensale/internal/wallet"
	"go.uber.org/zap"
)

// Runner разворачивает продажу по конфигу, исполняет сценарий и печатает отчёт.
type Runner struct {
	cfg    *config.Config
	log    *logger.Logger
	logger *zap.Logger
	out    io.Writer

	env       scenario.Env
	bus       *events.Bus
	collector *metrics.Collector
	alerts    *monitor.AlertManager
	shutdown  *ShutdownHandler

	// restored состояние загружено из state_file, стартовые балансы не выдаются
	restored bool
}

func NewRunner(cfg *config.Config, log *logger.Logger, out io.Writer) *Runner {
	return &Runner{
		cfg:      cfg,
		log:      log,
		logger:   log.WithComponent("app"),
		out:      out,
		shutdown: NewShutdownHandler(log.Logger, 10*time.Second),
	}
}

// Env развёрнутая продажа. Заполняется в Initialize.
func (r *Runner) Env() scenario.Env { return r.env }

func (r *Runner) Alerts() []monitor.Alert { return r.alerts.RecentAlerts(0) }

// Initialize кошельки, рантайм, токены, шина событий и метрики.
func (r *Runner) Initialize(ctx context.Context) error {
	book, err := r.loadWallets()
	if err != nil {
		return err
	}
	if err := book.Ensure(scenario.AccountOwner); err != nil {
		return err
	}
	ownerWallet, err := book.Get(scenario.AccountOwner)
	if err != nil {
		return err
	}
	owner := ownerWallet.Address()

	rt := chain.NewRuntime(r.log.Logger)

	payCfg, err := r.payTokenConfig()
	if err != nil {
		return err
	}
	pay, err := token.Deploy(ctx, rt, owner, payCfg, r.log.Logger)
	if err != nil {
		return fmt.Errorf("failed to deploy pay token: %w", err)
	}

	saleCfg, err := r.saleConfig(pay)
	if err != nil {
		return err
	}
	s, err := sale.Deploy(ctx, rt, owner, saleCfg, r.log.Logger)
	if err != nil {
		return fmt.Errorf("failed to deploy sale: %w", err)
	}

	r.env = scenario.Env{Runtime: rt, Sale: s, PayToken: pay, Owner: owner, Wallets: book}

	if r.cfg.StateFile != "" {
		if _, err := os.Stat(r.cfg.StateFile); err == nil {
			if err := rt.LoadFile(r.cfg.StateFile); err != nil {
				return err
			}
			r.restored = true
			r.logger.Info("State restored", zap.String("file", r.cfg.StateFile))
		}
	}

	// синхронная доставка: метрики и алерты видят сделку до следующего шага
	r.bus = events.NewBus(r.log.Logger, r.cfg.EventBuffer)
	events.Attach(rt, r.bus, r.log.Logger, true)
	r.bus.SubscribeAll(events.HandlerFunc(func(_ context.Context, ev events.Event) error {
		fields := []zap.Field{zap.String("type", string(ev.Type()))}
		if tr, ok := ev.(events.TransferExecutedEvent); ok {
			fields = append(fields, zap.String("from", r.accountName(tr.From)), zap.String("to", r.accountName(tr.To)))
		}
		r.logger.Debug("Event", fields...)
		return nil
	}))
	r.shutdown.AddFunc("events", func() error {
		return r.bus.Shutdown(context.Background())
	})

	r.collector = metrics.NewCollector()
	r.collector.Track(metrics.Market{
		Address:        s.Address(),
		Symbol:         s.Symbol(),
		Decimals:       s.Decimals(),
		PayDecimals:    pay.Decimals(),
		PricePrecision: s.PricePrecision().Uint64(),
	})
	r.collector.Attach(r.bus)

	largeTrade, err := r.cfg.LargeTrade()
	if err != nil {
		return err
	}
	r.alerts = monitor.NewAlertManager(monitor.AlertConfig{
		PriceMovePercent: r.cfg.Alerts.PriceMovePercent,
		LargeTrade:       largeTrade,
		Cooldown:         time.Duration(r.cfg.Alerts.Cooldown) * time.Millisecond,
	}, r.log.Logger)
	r.alerts.Track(monitor.Market{
		Address:        s.Address(),
		Symbol:         s.Symbol(),
		PayDecimals:    pay.Decimals(),
		PricePrecision: s.PricePrecision(),
	})
	r.alerts.Attach(r.bus)

	if r.cfg.MetricsAddr != "" {
		r.serveMetrics(ctx)
	}

	r.logger.Info("Sale initialized",
		zap.String("sale", s.Address().String()),
		zap.String("pay_token", pay.Address().String()),
		zap.String("flow", string(s.Flow())),
		zap.String("owner", owner.String()),
		zap.Bool("restored", r.restored))
	return nil
}

func (r *Runner) loadWallets() (*wallet.Book, error) {
	if r.cfg.WalletsFile == "" {
		return wallet.NewBook(), nil
	}
	if _, err := os.Stat(r.cfg.WalletsFile); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("Wallets file not found, generating", zap.String("file", r.cfg.WalletsFile))
		return wallet.NewBook(), nil
	}
	book, err := wallet.LoadWallets(r.cfg.WalletsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	r.logger.Info("Wallets loaded", zap.Int("count", book.Len()))
	return book, nil
}

func (r *Runner) accountName(a types.Address) string {
	if name, ok := r.env.Wallets.NameOf(a); ok {
		return name
	}
	if a == r.env.Sale.Address() {
		return scenario.AccountSale
	}
	return types.ShortAddress(a)
}

func (r *Runner) payTokenConfig() (token.Config, error) {
	pc := r.cfg.PayToken
	supply, err := units.ToWei(pc.InitialSupply, pc.Decimals)
	if err != nil {
		return token.Config{}, fmt.Errorf("invalid pay_token.initial_supply: %w", err)
	}
	return token.Config{
		Name:          pc.Name,
		Symbol:        pc.Symbol,
		Decimals:      pc.Decimals,
		InitialSupply: supply,
		Kind:          token.Kind(pc.Kind),
		Sanctions:     pc.Sanctions,
		GodMode:       pc.GodMode,
	}, nil
}

func (r *Runner) saleConfig(pay token.ERC20) (sale.Config, error) {
	precision, err := r.cfg.PricePrecision()
	if err != nil {
		return sale.Config{}, err
	}
	slope, err := r.cfg.Slope()
	if err != nil {
		return sale.Config{}, err
	}
	return sale.Config{
		Name:           r.cfg.Sale.Name,
		Symbol:         r.cfg.Sale.Symbol,
		Decimals:       r.cfg.Sale.Decimals,
		PricePrecision: precision,
		Slope:          slope,
		PayToken:       pay,
		Flow:           sale.Flow(r.cfg.Sale.Flow),
	}, nil
}

func (r *Runner) serveMetrics(ctx context.Context) {
	metricsCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- r.collector.Serve(metricsCtx, r.cfg.MetricsAddr, r.log.Logger)
	}()
	r.shutdown.AddFunc("metrics", func() error {
		cancel()
		return <-done
	})
}

// Run исполняет сценарий (если задан) и печатает отчёт.
func (r *Runner) Run(ctx context.Context) ([]scenario.Result, error) {
	var sc *scenario.Scenario
	if r.cfg.ScenarioFile != "" {
		var err error
		sc, err = scenario.NewManager(r.log.Logger).LoadYAML(r.cfg.ScenarioFile)
		if err != nil {
			return nil, err
		}
	}

	if err := r.prepareAccounts(sc); err != nil {
		return nil, err
	}
	if !r.restored {
		if err := r.fundAccounts(ctx); err != nil {
			return nil, err
		}
	}

	var (
		results []scenario.Result
		runErr  error
	)
	if sc != nil {
		runner := scenario.NewRunner(r.env, scenario.Options{
			Workers:    r.cfg.Workers,
			Retries:    r.cfg.Retries,
			RetryDelay: time.Duration(r.cfg.RetryDelay) * time.Millisecond,
			Bus:        r.bus,
			Metrics:    r.collector,
		}, r.log.Logger)
		results, runErr = runner.Run(ctx, sc)
	}

	snap, err := report.Collect(context.WithoutCancel(ctx), r.env)
	if err != nil {
		return results, errors.Join(runErr, err)
	}
	for _, a := range r.alerts.RecentAlerts(0) {
		snap.Alerts = append(snap.Alerts, report.Alert{Severity: a.Severity, Message: a.Message})
	}
	fmt.Fprint(r.out, report.Render(snap, results))

	if r.cfg.StateFile != "" {
		if err := r.env.Runtime.SaveFile(r.cfg.StateFile); err != nil {
			return results, errors.Join(runErr, fmt.Errorf("failed to save state: %w", err))
		}
		r.logger.Info("State saved", zap.String("file", r.cfg.StateFile))
	}
	return results, runErr
}

// prepareAccounts создаёт кошельки для аккаунтов конфига и сценария и
// сохраняет их, если файл кошельков ещё не существует.
func (r *Runner) prepareAccounts(sc *scenario.Scenario) error {
	var names []string
	for _, acc := range r.cfg.Accounts {
		names = append(names, acc.Name)
	}
	if sc != nil {
		for _, name := range sc.Accounts() {
			if name != scenario.AccountOwner && name != scenario.AccountSale {
				names = append(names, name)
			}
		}
	}

	before := r.env.Wallets.Len()
	if err := r.env.Wallets.Ensure(names...); err != nil {
		return err
	}
	_, statErr := os.Stat(r.cfg.WalletsFile)
	if r.cfg.WalletsFile != "" && (r.env.Wallets.Len() != before || errors.Is(statErr, os.ErrNotExist)) {
		if err := r.env.Wallets.SaveCSV(r.cfg.WalletsFile); err != nil {
			return fmt.Errorf("failed to save wallets: %w", err)
		}
		r.logger.Info("Wallets saved", zap.String("file", r.cfg.WalletsFile), zap.Int("count", r.env.Wallets.Len()))
	}
	return nil
}

// fundAccounts выдаёт стартовые балансы платёжного токена со счёта владельца.
func (r *Runner) fundAccounts(ctx context.Context) error {
	pay := r.env.PayToken
	for _, acc := range r.cfg.Accounts {
		if acc.Balance == "" {
			continue
		}
		amount, err := units.ToWei(acc.Balance, pay.Decimals())
		if err != nil {
			return err
		}
		w, err := r.env.Wallets.Get(acc.Name)
		if err != nil {
			return err
		}
		if _, err := r.env.Runtime.Execute(ctx, r.env.Owner, pay.Address(), "fund", func(c *chain.Context) error {
			return pay.Transfer(c, w.Address(), amount)
		}); err != nil {
			return fmt.Errorf("failed to fund %s: %w", acc.Name, err)
		}
		r.log.WithAccount(acc.Name, w.Address().String()).Debug("Account funded", zap.String("amount", acc.Balance))
	}
	return nil
}

// Shutdown останавливает метрики, дожидается доставки событий и
// сбрасывает логгер.
func (r *Runner) Shutdown(ctx context.Context) error {
	err := r.shutdown.Shutdown(ctx)
	if serr := r.log.Sync(); serr != nil {
		err = errors.Join(err, serr)
	}
	return err
}
