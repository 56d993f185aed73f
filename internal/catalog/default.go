package catalog

// Names of the two high-value prizes used by the guaranteed tier
const (
	MovieTicket = "Movie Ticket"
	ShoeReward  = "Shoe Reward"
)

// defaultSegments is the production wheel: six outcomes, with the no-reward
// and K-Coin outcomes appearing twice under distinct names.
var defaultSegments = []Segment{
	{
		ID:          "better-luck",
		Name:        "Better Luck Next Time",
		Color:       "hsl(220,60%,30%)",
		Description: "No reward this time. You can spin again after 24 hours.",
	},
	{
		ID:          "kcoin-10",
		Name:        "10 K-Coins",
		Color:       "hsl(45,90%,45%)",
		Description: "K-Coins can be redeemed for mobile recharges and KdashTo products.",
		Value:       "10",
	},
	{
		ID:          "movie-ticket",
		Name:        MovieTicket,
		Color:       "hsl(350,75%,45%)",
		Description: "A complimentary movie ticket. Redemption details are delivered within 48 hours.",
	},
	{
		ID:          "try-again",
		Name:        "Try Again",
		Color:       "hsl(200,50%,35%)",
		Description: "No reward this time. You can spin again after 24 hours.",
	},
	{
		ID:          "kcoin-50",
		Name:        "50 K-Coins",
		Color:       "hsl(35,95%,50%)",
		Description: "K-Coins can be redeemed for mobile recharges and KdashTo products.",
		Value:       "50",
	},
	{
		ID:          "shoe-reward",
		Name:        ShoeReward,
		Color:       "hsl(150,60%,35%)",
		Description: "Submit your shipping address. The product is dispatched within 15 days.",
	},
}

// Default returns the production catalog, requiring both guaranteed prizes
func Default() *Catalog {
	return New(defaultSegments, RequireNames(MovieTicket, ShoeReward))
}
