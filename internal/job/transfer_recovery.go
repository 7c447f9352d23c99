package job

import (
	"context"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/model"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TransferResumer is satisfied by *ledger.Engine.
type TransferResumer interface {
	StalledTransfers(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Transfer, error)
	Resume(ctx context.Context, transferNo string) (*model.Transfer, error)
}

// TransferRecoveryJob periodically drives open transfers that nobody is
// working on: PARTIAL and PENDING_RETRY ones, and CREATED or DEBITED ones
// whose request died.
type TransferRecoveryJob struct {
	resumer    TransferResumer
	cron       *cron.Cron
	schedule   string
	staleAfter time.Duration
	batchSize  int
	log        zerolog.Logger
	timeout    time.Duration
}

func NewTransferRecoveryJob(resumer TransferResumer, cfg *config.JobsConfig, log zerolog.Logger) *TransferRecoveryJob {
	log = log.With().Str("component", "transfer_recovery").Logger()
	cronLog := cron.PrintfLogger(&log)
	j := &TransferRecoveryJob{
		resumer:    resumer,
		cron:       cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		schedule:   cfg.RecoverySchedule,
		staleAfter: cfg.RecoveryStaleAfter,
		batchSize:  cfg.RecoveryBatchSize,
		log:        log,
		timeout:    time.Minute,
	}
	if j.batchSize <= 0 {
		j.batchSize = 100
	}
	return j
}

// Start registers the schedule and starts the scheduler in the background.
func (j *TransferRecoveryJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info().Str("schedule", j.schedule).Dur("stale_after", j.staleAfter).Msg("scheduled")
	return nil
}

// Stop waits for a running pass to finish.
func (j *TransferRecoveryJob) Stop() context.Context {
	return j.cron.Stop()
}

func (j *TransferRecoveryJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.RunOnce(ctx)
}

// RunOnce resumes one batch of stalled transfers and returns how many
// reached COMPLETED or FAILED.
func (j *TransferRecoveryJob) RunOnce(ctx context.Context) int {
	transfers, err := j.resumer.StalledTransfers(ctx, j.staleAfter, j.batchSize)
	if err != nil {
		j.log.Error().Err(err).Msg("list stalled transfers")
		return 0
	}
	if len(transfers) == 0 {
		return 0
	}

	j.log.Info().Int("count", len(transfers)).Msg("resuming stalled transfers")

	closed := 0
	for _, t := range transfers {
		if ctx.Err() != nil {
			break
		}
		res, err := j.resumer.Resume(ctx, t.TransferNo)
		if err != nil {
			j.log.Warn().Err(err).Str("transfer_no", t.TransferNo).Str("status", t.Status).Msg("resume failed")
			continue
		}
		if res != nil && !res.IsOpen() {
			closed++
			j.log.Info().Str("transfer_no", t.TransferNo).Str("status", res.Status).Msg("transfer closed")
		}
	}
	return closed
}
