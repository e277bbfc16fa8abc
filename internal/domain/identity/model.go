package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Only the demographic fields the order
// and observation workflows need are carried here; full demographics live in
// the upstream registration system.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Sex       string     `db:"sex" json:"sex"` // Male, Female, Other
	DOB       *time.Time `db:"dob" json:"dob,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Mobile    *string    `db:"mobile" json:"mobile,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Age is a patient age snapshot taken at a reference date.
type Age struct {
	Years   int    `json:"years"`
	Months  int    `json:"months"`
	Days    int    `json:"days"`
	InDays  int    `json:"age_in_days"`
	Display string `json:"age_in_string"`
}

// AgeAt computes the patient's age as of the given date. The total day count
// is a plain calendar difference; the years/months breakdown follows the
// civil calendar so the display string matches what clinicians expect.
func (p *Patient) AgeAt(asOf time.Time) (Age, error) {
	if p.DOB == nil {
		return Age{}, fmt.Errorf("patient %s has no date of birth recorded", p.ID)
	}
	dob := *p.DOB
	if asOf.Before(dob) {
		return Age{}, fmt.Errorf("reference date %s precedes date of birth", asOf.Format("2006-01-02"))
	}

	years := asOf.Year() - dob.Year()
	months := int(asOf.Month()) - int(dob.Month())
	days := asOf.Day() - dob.Day()
	// Borrow whole months until the day component is non-negative. A single
	// borrow is not enough when the birth day exceeds the length of the
	// preceding month (Jan 31 -> Mar 1 crosses a 28-day February).
	anchor := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	for days < 0 {
		anchor = anchor.AddDate(0, -1, 0)
		days += daysInMonth(anchor)
		months--
	}
	if months < 0 {
		months += 12
		years--
	}

	totalDays := int(truncateToDay(asOf).Sub(truncateToDay(dob)).Hours() / 24)

	return Age{
		Years:   years,
		Months:  months,
		Days:    days,
		InDays:  totalDays,
		Display: fmt.Sprintf("%d Year(s) %d Month(s) %d Day(s)", years, months, days),
	}, nil
}

func daysInMonth(t time.Time) int {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
