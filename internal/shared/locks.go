package shared

import "fmt"

// PaymentLockKey builds redis keys serialising payments against one bill.
func PaymentLockKey(billID int64) string {
	return fmt.Sprintf("books:bill:%d:payment-lock", billID)
}
