package enums

type SwipeResult string

const (
	SwipeResultRecorded      SwipeResult = "Recorded"
	SwipeResultQuotaExceeded SwipeResult = "QuotaExceeded"
	SwipeResultInvalidTarget SwipeResult = "InvalidTarget"
)
