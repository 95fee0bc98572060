package sherlock

import (
	"context"

	"github.com/herohde/sherlock/pkg/board"
	"github.com/seekerror/logw"
)

// run drives rules to a fixed point: each pass applies every rule in order; if a rule
// reports Illegal, saturation stops immediately. After a full pass makes no progress,
// the store has reached its fixed point. Progress is measured by the store's own
// progress counter, not by per-rule return codes, so a rule may safely under-report.
func run(ctx context.Context, pos *board.Position, turn board.Color, a *Analysis, rules []Rule) {
	for pass := 0; ; pass++ {
		before := a.Progress()

		for _, r := range rules {
			if v := r.Apply(pos, turn, a); v == Illegal {
				logw.Debugf(ctx, "sherlock: pass %v: illegal (%v)", pass, firstReason(a))
				return
			}
		}

		if a.Progress() == before {
			logw.Debugf(ctx, "sherlock: reached fixed point after %v passes", pass+1)
			return
		}
	}
}

func firstReason(a *Analysis) string {
	reason, _ := a.IllegalReason()
	return reason
}
