package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as "@hourly" or "@every 10m".
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New returns a cron scheduler that understands the same syntax as Parser.
func New() *cron.Cron {
	return cron.New(cron.WithParser(Parser))
}

type TriggerInfo struct {
	Expression    string
	Next          time.Time
	AfterNext     time.Time
	TimeUntilNext time.Duration
	Interval      time.Duration
}

// GetTriggerInfo reports when cronExpr fires next after refTime and the gap
// to the following trigger.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	next := schedule.Next(refTime)
	if next.IsZero() {
		return nil, fmt.Errorf("cron expression %q never fires", cronExpr)
	}
	afterNext := schedule.Next(next)

	return &TriggerInfo{
		Expression:    cronExpr,
		Next:          next,
		AfterNext:     afterNext,
		TimeUntilNext: next.Sub(refTime),
		Interval:      afterNext.Sub(next),
	}, nil
}
