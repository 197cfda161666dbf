package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/events"
	"github.com/rovshanmuradov/tokensale/internal/metrics"
	"github.com/rovshanmuradov/tokensale/internal/sale"
	"github.com/rovshanmuradov/tokensale/internal/token"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/rovshanmuradov/tokensale/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Env развёрнутая продажа, над которой работает сценарий.
type Env struct {
	Runtime  *chain.Runtime
	Sale     *sale.Sale
	PayToken token.ERC20
	Owner    types.Address
	Wallets  *wallet.Book
}

// Options параметры исполнения. Bus и Metrics необязательны.
type Options struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
	Bus        *events.Bus
	Metrics    *metrics.Collector
}

// Runner исполняет шаги сценария как транзакции рантайма.
type Runner struct {
	env    Env
	opts   Options
	logger *zap.Logger
}

func NewRunner(env Env, opts Options, logger *zap.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Runner{env: env, opts: opts, logger: logger.Named("scenario")}
}

// Run исполняет шаги по порядку. Параллельные группы исполняются
// одновременно, не более Workers шагов сразу. Ошибки шагов попадают в
// результаты; Run возвращает ошибку только при отмене ctx или StopOnError.
func (r *Runner) Run(ctx context.Context, sc *Scenario) ([]Result, error) {
	r.logger.Info("Starting scenario",
		zap.String("name", sc.Name),
		zap.Int("steps", len(sc.Steps)),
		zap.Int("workers", r.opts.Workers))

	var results []Result
	index := 0
	for _, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var batch []Result
		if step.IsGroup() {
			var err error
			batch, err = r.runGroup(ctx, sc, step, index)
			if err != nil {
				return append(results, batch...), err
			}
		} else {
			batch = []Result{r.runStep(ctx, sc, step, index)}
		}
		index += len(batch)
		results = append(results, batch...)

		if sc.StopOnError {
			for _, res := range batch {
				if !res.OK() {
					return results, fmt.Errorf("step %d (%s) failed: %w", res.Index, res.Name, res.Err)
				}
			}
		}
	}

	r.logger.Info("Scenario finished", zap.String("name", sc.Name), zap.Int("results", len(results)))
	return results, nil
}

func (r *Runner) runGroup(ctx context.Context, sc *Scenario, group Step, base int) ([]Result, error) {
	results := make([]Result, len(group.Parallel))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, step := range group.Parallel {
		g.Go(func() error {
			results[i] = r.runStep(gCtx, sc, step, base+i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

type outcome struct {
	txID  string
	quote *QuoteInfo
}

func (r *Runner) runStep(ctx context.Context, sc *Scenario, step Step, index int) Result {
	res := Result{Index: index, Name: step.Name, Action: step.Action, Account: step.Account}
	if res.Name == "" {
		res.Name = fmt.Sprintf("%s #%d", step.Action, index)
	}
	slip := sc.Slippage
	if step.Slippage != nil {
		slip = *step.Slippage
	}

	// ожидаемая ошибка не повторяется
	maxTries := uint(r.opts.Retries + 1)
	if step.Expect != "" {
		maxTries = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.opts.RetryDelay
	policy.MaxInterval = r.opts.RetryDelay * 10

	notify := func(err error, d time.Duration) {
		r.logger.Info("Retrying step after price moved",
			zap.String("step", res.Name),
			zap.Int("attempt", res.Attempts),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	// каждая попытка заново берёт котировку
	operation := func() (outcome, error) {
		res.Attempts++
		out, err := r.execute(ctx, step, slip)
		if err != nil && !errors.Is(err, sale.ErrSlippageExceeded) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}

	start := time.Now()
	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(notify))
	res.Duration = time.Since(start)
	res.TxID = out.txID
	res.Quote = out.quote
	res.Err = err
	if err != nil && step.Expect != "" {
		res.Expected = errors.Is(err, ErrorNames[step.Expect])
	}
	if err == nil && step.Expect != "" {
		res.Err = fmt.Errorf("expected %s, step succeeded", step.Expect)
	}

	r.record(ctx, step, res)
	return res
}

func (r *Runner) record(ctx context.Context, step Step, res Result) {
	fields := []zap.Field{
		zap.Int("index", res.Index),
		zap.String("step", res.Name),
		zap.String("action", string(res.Action)),
		zap.String("account", res.Account),
		zap.Int("attempts", res.Attempts),
		zap.Duration("duration", res.Duration),
	}

	if res.OK() {
		r.logger.Debug("Step completed", append(fields, zap.String("tx_id", res.TxID), zap.Bool("expected_error", res.Expected))...)
		r.publish(events.NewStepCompleted(res.Index, res.Name, string(res.Action), res.Account, res.Attempts, res.TxID))
	} else {
		r.logger.Warn("Step failed", append(fields, zap.Error(res.Err))...)
		r.publish(events.NewStepFailed(res.Index, res.Name, string(res.Action), res.Account, res.Attempts, res.Err))
	}

	// успешные сделки приходят в метрики через шину
	if r.opts.Metrics != nil && res.Err != nil {
		if kind, ok := tradeKind(step.Action); ok {
			r.opts.Metrics.RecordTrade(ctx, kind, string(r.env.Sale.Flow()), res.Duration, false)
		}
	}
}

func (r *Runner) publish(ev events.Event) {
	if r.opts.Bus == nil {
		return
	}
	if err := r.opts.Bus.Publish(ev); err != nil {
		r.logger.Debug("Step event dropped", zap.Error(err))
	}
}

func tradeKind(a Action) (string, bool) {
	switch a {
	case ActionBuy, ActionPay:
		return string(sale.TradeBuy), true
	case ActionSell:
		return string(sale.TradeSell), true
	default:
		return "", false
	}
}
