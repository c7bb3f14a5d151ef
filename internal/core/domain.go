package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	Weekly  Frequency = "weekly"
	Daily   Frequency = "daily"
)

const (
	KindCard        InstrumentKind = "card"
	KindDirectDebit InstrumentKind = "direct_debit"
)

// DateLayout is the canonical ISO calendar date layout used everywhere a date crosses a boundary.
const DateLayout = "2006-01-02"

type (
	Frequency string

	InstrumentKind string

	// Date is a local calendar date. The wrapped time is always midnight UTC and
	// carries no zone meaning.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// BillingConfig is the billing rule set of a payment instrument.
	BillingConfig struct {
		ClosingDay        DayToken `json:"closingDay"`
		PaymentDay        DayToken `json:"paymentDay"`
		PaymentMonthShift int      `json:"paymentMonthShift"`
		AdjustWeekend     bool     `json:"adjustWeekend"`
	}

	Account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Instrument is a card or a direct-debit profile. Direct debits only honour
	// Billing.AdjustWeekend.
	Instrument struct {
		ID        string         `json:"id"`
		Label     string         `json:"label"`
		Kind      InstrumentKind `json:"kind"`
		AccountID string         `json:"accountId"`
		Billing   BillingConfig  `json:"billing"`
	}

	// LedgerEntry is a recorded transaction. The scheduled fields are owned by the
	// billing engine and are zero until computed.
	LedgerEntry struct {
		ID             string         `json:"id"`
		OccurrenceDate Date           `json:"occurrenceDate"`
		Amount         Money          `json:"amount"`
		InstrumentID   string         `json:"instrumentId"`
		InstrumentKind InstrumentKind `json:"instrumentKind,omitempty"` // denormalised by the store for day totals
		Description    string         `json:"description"`
		Category       string         `json:"category,omitempty"`

		ScheduledPayDate    Date `json:"scheduledPayDate"`
		ClosingDate         Date `json:"closingDate"`
		OriginalPaymentDate Date `json:"originalPaymentDate"`
		IsAdjusted          bool `json:"isAdjusted"`
	}

	// RecurringProjection is a future obligation derived from a RecurringTemplate.
	// It is never persisted and never touched by batch recalculation.
	RecurringProjection struct {
		TemplateID       string `json:"templateId"`
		Date             Date   `json:"date"`
		ScheduledPayDate Date   `json:"scheduledPayDate"`
		Amount           Money  `json:"amount"`
		InstrumentID     string `json:"instrumentId"`
		Description      string `json:"description"`
	}

	RecurringTemplate struct {
		ID            string    `json:"id"`
		StartDate     Date      `json:"startDate"`
		EndDate       Date      `json:"endDate"`
		Every         Frequency `json:"every"`
		Description   string    `json:"description"`
		Amount        Money     `json:"amount"`
		InstrumentID  string    `json:"instrumentId"`
		Category      string    `json:"category,omitempty"`
		LastExecution Date      `json:"lastExecution"`
	}

	// PaymentCycleResult is recomputed on demand and never the source of truth.
	PaymentCycleResult struct {
		ScheduledPayDate    Date `json:"scheduledPayDate"`
		ClosingDate         Date `json:"closingDate"`
		OriginalPaymentDate Date `json:"originalPaymentDate"`
		IsAdjusted          bool `json:"isAdjusted"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyInstrument  = errors.New("empty instrument reference")
	ErrInvalidKind      = errors.New("invalid instrument kind")
	ErrInvalidShift     = errors.New("invalid payment month shift")
)

// MaxPaymentMonthShift bounds how far a statement can push the debit forward.
const MaxPaymentMonthShift = 12

// NewDate creates a new Date from year, month, day. Out of range values are
// normalised the way time.Date normalises them.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Equal reports whether both dates denote the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// InMonth reports whether d falls within the given year and month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

// String returns the ISO form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of both amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Cents)
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &m.Cents)
}

func (k InstrumentKind) IsValid() bool {
	switch k {
	case KindCard, KindDirectDebit:
		return true
	default:
		return false
	}
}

func (c BillingConfig) Validate() error {
	if err := c.ClosingDay.Validate(); err != nil {
		return fmt.Errorf("closing day: %w", err)
	}
	if err := c.PaymentDay.Validate(); err != nil {
		return fmt.Errorf("payment day: %w", err)
	}
	if c.PaymentMonthShift < 0 || c.PaymentMonthShift > MaxPaymentMonthShift {
		return fmt.Errorf("%w: %d (must be 0..%d)", ErrInvalidShift, c.PaymentMonthShift, MaxPaymentMonthShift)
	}
	return nil
}

func (i Instrument) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errors.New("instrument id cannot be empty")
	}
	if !i.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, i.Kind)
	}
	if strings.TrimSpace(i.AccountID) == "" {
		return fmt.Errorf("instrument %s: account reference cannot be empty", i.ID)
	}
	if i.Kind == KindCard {
		if err := i.Billing.Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", i.ID, err)
		}
	}
	return nil
}

// IsScheduled reports whether the billing engine has attached a pay date.
func (e LedgerEntry) IsScheduled() bool {
	return !e.ScheduledPayDate.IsZero()
}

// WithCycle returns a copy of e carrying the given cycle result.
func (e LedgerEntry) WithCycle(r PaymentCycleResult) LedgerEntry {
	e.ScheduledPayDate = r.ScheduledPayDate
	e.ClosingDate = r.ClosingDate
	e.OriginalPaymentDate = r.OriginalPaymentDate
	e.IsAdjusted = r.IsAdjusted
	return e
}

// Cycle returns the cycle metadata stored on e.
func (e LedgerEntry) Cycle() PaymentCycleResult {
	return PaymentCycleResult{
		ScheduledPayDate:    e.ScheduledPayDate,
		ClosingDate:         e.ClosingDate,
		OriginalPaymentDate: e.OriginalPaymentDate,
		IsAdjusted:          e.IsAdjusted,
	}
}

func (e LedgerEntry) Validate() error {
	if err := e.OccurrenceDate.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.InstrumentID) == "" {
		return ErrEmptyInstrument
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (rt RecurringTemplate) Validate() error {
	if err := rt.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	if !rt.EndDate.IsZero() {
		if err := rt.EndDate.Validate(); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if rt.EndDate.Before(rt.StartDate) {
			return errors.New("end date must be after start date")
		}
	}

	switch rt.Every {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return errors.New("invalid repetition type")
	}

	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rt.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(rt.InstrumentID) == "" {
		return ErrEmptyInstrument
	}
	return nil
}
