package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Document number prefixes.
const (
	PrefixJournal = "JE-"
	PrefixBill    = "BILL-"
	PrefixPayment = "PAY-"
)

// MonthPrefix returns the month-scoped part shared by every number generated in at's month.
func MonthPrefix(prefix string, at time.Time) string {
	return fmt.Sprintf("%s%04d%02d", prefix, at.Year(), int(at.Month()))
}

// NextNumber returns the number following last within the month of at. last is
// the highest number already issued for the month or empty when none exists.
// Sequences are left padded to four digits for every document type.
func NextNumber(prefix string, at time.Time, last string) string {
	month := MonthPrefix(prefix, at)
	seq := 1
	if strings.HasPrefix(last, month) {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, month)); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", month, seq)
}
