// Package scheduler запускает промоушен chunks по расписанию.
//
// Структура:
//   - scheduler.go — Scheduler (Run, Tick) поверх robfig/cron
//   - cron.go      — разбор cron-выражений и вычисление следующего запуска
//   - leader.go    — leader election через pg_try_advisory_lock
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Promoter: promoteService,
//	    Locker:   scheduler.NewAdvisoryLock(pool, scheduler.PromoteLockKey),
//	    Logger:   logger,
//	})
//
//	go sched.Run(ctx)
//
// Несколько экземпляров могут работать одновременно: промоушен
// выполняет только держатель advisory lock.
package scheduler
