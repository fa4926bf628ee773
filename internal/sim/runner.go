package sim

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/epidemicexpress/server/internal/domain/rules"
	"github.com/epidemicexpress/server/internal/platform/logger"
	"github.com/epidemicexpress/server/internal/platform/random"
)

// DefaultMaxActions bounds a single game; real games end far sooner.
const DefaultMaxActions = 10000

// Batch describes a run of simulated games.
type Batch struct {
	Rules      rules.Ruleset
	Strategy   Strategy
	Games      int
	BaseSeed   int64 // 0 draws every seed at random
	Workers    int   // 0 uses one per CPU
	MaxActions int
	Logger     *logger.Logger
}

// Report aggregates the results of a batch.
type Report struct {
	Strategy     string         `json:"strategy"`
	Games        int            `json:"games"`
	Won          int            `json:"won"`
	Lost         int            `json:"lost"`
	Unfinished   int            `json:"unfinished"`
	WinRate      float64        `json:"win_rate"`
	AvgTurnsWon  float64        `json:"avg_turns_won"`
	AvgTurnsLost float64        `json:"avg_turns_lost"`
	AvgCured     float64        `json:"avg_cured"`
	LossReasons  map[string]int `json:"loss_reasons"`
	Duration     time.Duration  `json:"duration"`
	Results      []Result       `json:"results,omitempty"`
}

// Run plays the batch. When ctx is cancelled it stops handing out games and
// returns the report of the games played so far together with ctx.Err().
func (b Batch) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	log := b.Logger
	if log == nil {
		log = logger.Discard()
	}
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxActions := b.MaxActions
	if maxActions <= 0 {
		maxActions = DefaultMaxActions
	}

	jobs := make(chan int)
	results := make([]Result, b.Games)
	played := make([]bool, b.Games)
	var failures atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				seed, err := b.seed(i)
				if err != nil {
					log.Errorf("sim: seed for game %d: %v", i, err)
					failures.Add(1)
					continue
				}
				res, err := Play(b.Rules, seed, b.Strategy, maxActions)
				if err != nil && !errors.Is(err, ErrUnfinished) {
					log.Errorf("sim: %v", err)
					failures.Add(1)
					continue
				}
				results[i] = res
				played[i] = true
			}
		}()
	}

	var runErr error
dispatch:
	for i := 0; i < b.Games; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	var done []Result
	for i, ok := range played {
		if ok {
			done = append(done, results[i])
		}
	}
	report := Summarize(b.Strategy.Name(), done)
	report.Duration = time.Since(start)
	log.Infof("sim: %s played %d games (%d won, %d lost, %d unfinished, %d failed) in %v",
		report.Strategy, report.Games, report.Won, report.Lost, report.Unfinished, failures.Load(), report.Duration)
	return report, runErr
}

// seed returns the seed of game i. Fixed seeds follow the game index, not
// the worker schedule, so a batch is reproducible whatever its worker count.
func (b Batch) seed(i int) (int64, error) {
	if b.BaseSeed == 0 {
		return random.NewSeed()
	}
	return b.BaseSeed + int64(i), nil
}

// Summarize aggregates results into a report.
func Summarize(strategy string, results []Result) Report {
	r := Report{
		Strategy:    strategy,
		Games:       len(results),
		LossReasons: make(map[string]int),
		Results:     results,
	}
	var turnsWon, turnsLost, cured int
	for _, res := range results {
		cured += res.Cured
		switch {
		case !res.Finished:
			r.Unfinished++
		case res.Won:
			r.Won++
			turnsWon += res.Turns
		default:
			r.Lost++
			turnsLost += res.Turns
			r.LossReasons[res.LossReason]++
		}
	}
	if r.Games > 0 {
		r.WinRate = float64(r.Won) / float64(r.Games)
		r.AvgCured = float64(cured) / float64(r.Games)
	}
	if r.Won > 0 {
		r.AvgTurnsWon = float64(turnsWon) / float64(r.Won)
	}
	if r.Lost > 0 {
		r.AvgTurnsLost = float64(turnsLost) / float64(r.Lost)
	}
	return r
}

// TopLossReasons returns loss reasons ordered by frequency.
func (r Report) TopLossReasons() []string {
	reasons := make([]string, 0, len(r.LossReasons))
	for reason := range r.LossReasons {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		a, b := r.LossReasons[reasons[i]], r.LossReasons[reasons[j]]
		if a != b {
			return a > b
		}
		return reasons[i] < reasons[j]
	})
	return reasons
}
