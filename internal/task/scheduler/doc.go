// Package scheduler runs recurring tasks declared by command groups.
//
// Interval tasks invoke their handler and then sleep for a fixed delay.
// Clock-time tasks run at the nearest upcoming configured time of day in the
// bot's time zone; they are driven by robfig/cron with a custom Schedule.
package scheduler
