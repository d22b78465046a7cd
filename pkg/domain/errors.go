package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrValidation    = errors.New("validation failed")
	ErrDuplicate     = errors.New("duplicate record")
	ErrPoolExhausted = errors.New("name pools exhausted")
	ErrStore         = errors.New("store failure")
)

// ValidationError lists every field rule a record broke.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid record: " + strings.Join(e.Reasons, "; ")
}

// Is enables errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateSource tells which guard rejected a record.
type DuplicateSource string

const (
	DuplicateFromLedger DuplicateSource = "ledger"
	DuplicateFromStore  DuplicateSource = "store"
)

// DuplicateError reports a (full_name, birth_date) collision.
type DuplicateError struct {
	FullName  string
	BirthDate time.Time
	Source    DuplicateSource
	Err       error
}

func (e *DuplicateError) Error() string {
	if e.FullName == "" {
		return "uniqueness constraint unique_employee violated"
	}
	msg := fmt.Sprintf("record '%s' (%s) already exists", e.FullName, e.BirthDate.Format(DateLayout))
	if e.Source == DuplicateFromStore {
		msg += " (database constraint)"
	}
	return msg
}

// Is enables errors.Is(err, ErrDuplicate).
func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

func (e *DuplicateError) Unwrap() error { return e.Err }

// NewStoreDuplicate builds the error stores return for a unique-constraint rejection.
func NewStoreDuplicate(rec Record, cause error) error {
	return &DuplicateError{FullName: rec.FullName, BirthDate: rec.BirthDate, Source: DuplicateFromStore, Err: cause}
}

// PoolExhaustionError aborts generation when the name pools cannot yield
// enough unique combinations within the attempt budget.
type PoolExhaustionError struct {
	Phase     string
	Requested int
	Produced  int
	Attempts  int
}

func (e *PoolExhaustionError) Error() string {
	return fmt.Sprintf("%s generation exhausted name pools: produced %d of %d unique records in %d attempts",
		e.Phase, e.Produced, e.Requested, e.Attempts)
}

// Is enables errors.Is(err, ErrPoolExhausted).
func (e *PoolExhaustionError) Is(target error) bool { return target == ErrPoolExhausted }

// StoreError wraps connectivity or transactional failures unrelated to uniqueness.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Is enables errors.Is(err, ErrStore).
func (e *StoreError) Is(target error) bool { return target == ErrStore }

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore tags err as a StoreError unless it already classifies as a
// duplicate or store error.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrStore) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsDuplicate reports whether err is a uniqueness violation from either guard.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// LooksLikeUniqueViolation classifies driver errors by message when no
// structured code is available.
func LooksLikeUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"unique_employee", "unique", "duplicate"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
