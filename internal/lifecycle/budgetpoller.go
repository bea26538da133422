package lifecycle

import (
	"context"
	"sync"
	"time"
)

// BudgetPoller polls the agent's /budget on an interval and feeds the
// reported balance to Module.BudgetCheck (§4.4). An unreachable agent is
// logged and retried, never treated as a death signal.
type BudgetPoller struct {
	module   *Module
	interval time.Duration
}

func NewBudgetPoller(module *Module, interval time.Duration) *BudgetPoller {
	return &BudgetPoller{module: module, interval: interval}
}

func (p *BudgetPoller) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *BudgetPoller) tick(ctx context.Context) {
	if !p.module.IsAlive() {
		return
	}

	balance, err := p.module.BudgetBalance(ctx)
	if err != nil {
		p.module.log.Debug().Err(err).Msg("budget poller: agent unreachable this tick, not treated as death")
		return
	}

	p.module.BudgetCheck(ctx, balance)
}
