package pipeline

import (
	"log/slog"

	"github.com/youthlab/policyrag/history"
	"github.com/youthlab/policyrag/tokens"
)

// Option customizes a Pipeline at construction time.
type Option func(*Pipeline)

// WithHistory persists completed turns to the given store. Without it runs
// are not recorded.
func WithHistory(store history.Store) Option {
	return func(p *Pipeline) {
		if store != nil {
			p.history = store
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger == nil {
			return
		}
		p.logger = logger
		p.analyzer.logger = logger
		p.synthesizer.logger = logger
		p.selector.logger = logger
		p.composer.logger = logger
	}
}

// WithBudgeter replaces the row-set token budgeter.
func WithBudgeter(budgeter *tokens.Budgeter) Option {
	return func(p *Pipeline) {
		if budgeter != nil {
			p.selector.budgeter = budgeter
			p.composer.budgeter = budgeter
		}
	}
}
