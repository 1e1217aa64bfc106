package ledger

// ResolveEntryType maps an increase or decrease of an account with the given
// nature onto the journal side. Every posting routine derives its sides here.
func ResolveEntryType(nature Nature, isIncrease bool) EntryType {
	switch nature {
	case NatureAsset, NatureExpense:
		if isIncrease {
			return EntryTypeDebit
		}
		return EntryTypeCredit
	default:
		if isIncrease {
			return EntryTypeCredit
		}
		return EntryTypeDebit
	}
}

// Increase builds a line that grows the account balance by amount.
func Increase(acc Account, amount float64, description string) PostingLine {
	return lineFor(acc, amount, true, description)
}

// Decrease builds a line that shrinks the account balance by amount.
func Decrease(acc Account, amount float64, description string) PostingLine {
	return lineFor(acc, amount, false, description)
}

func lineFor(acc Account, amount float64, isIncrease bool, description string) PostingLine {
	line := PostingLine{AccountID: acc.ID, Description: description}
	if ResolveEntryType(acc.Nature, isIncrease) == EntryTypeDebit {
		line.Debit = amount
	} else {
		line.Credit = amount
	}
	return line
}

// signedBalance applies the nature's normal side to raw debit and credit sums.
func signedBalance(nature Nature, opening, debit, credit float64) float64 {
	if nature.DebitNormal() {
		return opening + (debit - credit)
	}
	return opening + (credit - debit)
}
