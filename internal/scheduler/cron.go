package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Расписание промоушена по умолчанию: ежедневно в 12:00 по Сантьяго.
const (
	DefaultSpec     = "0 12 * * *"
	DefaultTimezone = "America/Santiago"
)

// cronParser — парсер cron-выражений.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// LoadLocation загружает timezone. Пустая строка — UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// NextRun вычисляет следующее время запуска после from в timezone loc.
// Возвращает время в UTC.
func NextRun(cronExpr string, loc *time.Location, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from.In(loc)).UTC(), nil
}
