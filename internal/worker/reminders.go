package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/Haole1945/drl-platform-sub001/internal/db"
)

const TypePeriodReminder = "period:reminder"

// reminderDays are the days before a period closes on which students are
// reminded.
var reminderDays = []int{7, 3}

type PeriodStore interface {
	Active(ctx context.Context) ([]db.Period, error)
}

type ReminderTargets interface {
	StudentsToRemind(ctx context.Context, semester string) ([]string, error)
}

type ReminderStore interface {
	CreateOnce(ctx context.Context, n *db.Notification) (bool, error)
}

// Reminders reminds students of evaluation periods that are about to close.
type Reminders struct {
	Periods  PeriodStore
	Students ReminderTargets
	Store    ReminderStore
	Location *time.Location
	Now      func() time.Time // mockable
}

// Run sends the reminders due today and returns how many were added.
// Reminders already sent are skipped, so running twice a day is harmless.
func (r *Reminders) Run(ctx context.Context) (int, error) {
	periods, err := r.Periods.Active(ctx)
	if err != nil {
		return 0, err
	}
	today := dateOf(r.Now().In(r.Location))
	var sent int
	for i := range periods {
		p := &periods[i]
		if p.EndDate == nil {
			continue
		}
		days := int(dateOf(*p.EndDate).Sub(today).Hours() / 24)
		if !due(days) {
			continue
		}
		codes, err := r.Students.StudentsToRemind(ctx, p.Semester)
		if err != nil {
			return sent, err
		}
		for _, code := range codes {
			n := periodNotice(p, code, days)
			added, err := r.Store.CreateOnce(ctx, &n)
			if err != nil {
				return sent, err
			}
			if added {
				sent++
			}
		}
	}
	return sent, nil
}

func due(days int) bool {
	for _, d := range reminderDays {
		if d == days {
			return true
		}
	}
	return false
}

// dateOf drops the clock of t, keeping its calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func periodNotice(p *db.Period, recipient string, days int) db.Notification {
	id := p.ID
	return db.Notification{
		Recipient: recipient,
		PeriodID:  &id,
		DaysLeft:  &days,
		Kind:      "PERIOD_REMINDER",
		Title:     fmt.Sprintf("Nhắc nhở: Đợt đánh giá sắp kết thúc (%d ngày)", days),
		Message: fmt.Sprintf("Đợt đánh giá điểm rèn luyện học kỳ %s sẽ kết thúc vào ngày %s. Còn %d ngày nữa, vui lòng hoàn thành đánh giá trước hạn.",
			p.Semester, p.EndDate.Format("02/01/2006"), days),
	}
}
