package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"taskping/internal/notify"
	"taskping/internal/upstream"

	logx "taskping/pkg/logx"
)

// digestJob collects upcoming tasks once a day and schedules Daily
// reminders for them (delivered 09:00 the following day).
type digestJob struct {
	client *upstream.Client
	sched  *notify.Scheduler
	log    logx.Logger
	cron   *cron.Cron
}

func newDigestJob(client *upstream.Client, sched *notify.Scheduler, loc *time.Location, log logx.Logger) *digestJob {
	j := &digestJob{
		client: client,
		sched:  sched,
		log:    log,
		cron:   cron.New(cron.WithLocation(loc)),
	}
	// 09:00 local; the resulting reminders fire at 09:00 the next day.
	_, _ = j.cron.AddFunc("0 9 * * *", j.run)
	return j
}

func (j *digestJob) start() { j.cron.Start() }

func (j *digestJob) stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *digestJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Open tasks with due dates from now on.
	tasks, err := j.client.ChangedTasks(ctx, time.Now(), false)
	if err != nil {
		j.log.Warn("daily digest fetch failed", logx.Err(err))
		return
	}

	scheduled := 0
	for _, t := range tasks {
		if _, ok := j.sched.ScheduleReminder(t, notify.KindDaily); ok {
			scheduled++
		}
	}
	j.log.Info("daily digest scheduled", logx.Int("tasks", len(tasks)), logx.Int("reminders", scheduled))
}
