package market

type Account struct {
	ID         string
	Currency   string
	Balance    float64
	Equity     float64
	MarginUsed float64
	FreeMargin float64
}
