// Package obs provides the ambient observability surface shared by every
// component: structured logging, the per-victim alert channel, and
// Prometheus metrics. It deliberately does not own the formatter or the
// alerting transport (spec.md treats those as external collaborators) —
// only the thin interfaces the rest of the tree calls into.
package obs

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
)

// Logger wraps go-ethereum's structured logger with the per-victim tag
// convention required by spec.md §7: every log line about an opportunity
// carries a tx_hash field.
type Logger struct {
	log.Logger
}

// NewLogger builds the root logger. Output format (text vs JSON) and level
// are owned by the deployment's log formatter, not by this package; here we
// only pick a sane terminal default.
func NewLogger(verbosity log.Lvl) *Logger {
	h := log.NewTerminalHandlerWithLevel(os.Stderr, log.LvlInfo, true)
	root := log.NewLogger(h)
	root.SetContext([]interface{}{"component", "sando"})
	return &Logger{Logger: root}
}

// For returns a child logger scoped to a component name, e.g. "pool" or
// "optimizer", matching go-ethereum's own log.New(ctx...) convention.
func (l *Logger) For(component string) *Logger {
	return &Logger{Logger: log.NewLogger(l.Logger.Handler()).New("component", component)}
}

// Opportunity logs at info level with the {tx_hash} tag spec.md §7 requires
// for every line describing a candidate sandwich.
func (l *Logger) Opportunity(txHash string, msg string, ctx ...interface{}) {
	l.Info(msg, append([]interface{}{"tx_hash", txHash}, ctx...)...)
}

// Dropped logs a filter rejection or a zero-revenue optimizer result at
// info level, per spec.md §7 ("logged at info, the victim is dropped
// silently").
func (l *Logger) Dropped(txHash string, reason string, ctx ...interface{}) {
	l.Info("opportunity dropped", append([]interface{}{"tx_hash", txHash, "reason", reason}, ctx...)...)
}

// Poisoned logs a fatal safety-inspector rejection. The caller is still
// responsible for routing this to the out-of-band alert channel.
func (l *Logger) Poisoned(txHash string, intermediary string, opcodes []string) {
	l.Error("salmonella detected", "tx_hash", txHash, "intermediary_token", intermediary, "suspicious_opcodes", opcodes)
}
