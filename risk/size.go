package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/pulse/market"
)

// NoRatio is shown when no profitable target is set.
const NoRatio = "--"

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Inputs to the position sizer. Target is optional (zero).
type Inputs struct {
	Side       market.Side
	RiskAmount decimal.Decimal
	Price      decimal.Decimal
	Stop       decimal.Decimal
	Target     decimal.Decimal
	Balance    decimal.Decimal
}

// Result is a derived sizing snapshot. It is never an error: callers
// inspect Valid and Violations.
type Result struct {
	Quantity        int64           `json:"quantity"`
	RiskPerShare    decimal.Decimal `json:"riskPerShare"`
	RewardPerShare  decimal.Decimal `json:"rewardPerShare"`
	TotalRisk       decimal.Decimal `json:"totalRisk"`
	RequiredCapital decimal.Decimal `json:"requiredCapital"`
	Ratio           string          `json:"ratio"`
	Valid           bool            `json:"valid"`
	LowBuyingPower  bool            `json:"lowBuyingPower"`
	Violations      []Violation     `json:"violations,omitempty"`
}

func (r *Result) add(code, msg string) {
	r.Violations = append(r.Violations, Violation{Code: code, Msg: msg})
}

func (r *Result) reject(code, msg string) Result {
	r.add(code, msg)
	r.Valid = false
	r.Quantity = 0
	return *r
}

// Has reports whether a violation with the given code was raised.
func (r Result) Has(code string) bool {
	for _, v := range r.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Size computes a risk-based share quantity for a bracket order.
func Size(in Inputs) Result {
	res := Result{Ratio: NoRatio}

	side := in.Side
	if side == "" {
		side = market.Buy
	}

	if !in.RiskAmount.IsPositive() {
		return res.reject("NO_RISK", "risk amount must be positive")
	}
	if !in.Price.IsPositive() {
		return res.reject("NO_PRICE", "no market price")
	}
	if !in.Stop.IsPositive() {
		return res.reject("NO_STOP", "stop price must be positive")
	}

	perShare := PerShare(side, in.Price, in.Stop)
	if !perShare.IsPositive() {
		return res.reject("STOP_WRONG_SIDE",
			fmt.Sprintf("stop %s is not protective for a %s at %s", in.Stop, side, in.Price))
	}
	res.RiskPerShare = perShare

	qty := in.RiskAmount.Div(perShare).Floor().IntPart()
	if qty <= 0 {
		return res.reject("ZERO_QUANTITY",
			fmt.Sprintf("risk %s buys no shares at %s per share", in.RiskAmount, perShare))
	}

	res.Valid = true
	res.Quantity = qty
	shares := decimal.NewFromInt(qty)
	res.TotalRisk = perShare.Mul(shares)
	res.RequiredCapital = in.Price.Mul(shares)

	if res.RequiredCapital.GreaterThan(in.Balance) {
		res.LowBuyingPower = true
		res.add("LOW_BUYING_POWER",
			fmt.Sprintf("required capital %s exceeds balance %s", res.RequiredCapital.StringFixed(2), in.Balance.StringFixed(2)))
	}

	if in.Target.IsPositive() {
		reward := Reward(side, in.Price, in.Target)
		if reward.IsPositive() {
			res.RewardPerShare = reward
			res.Ratio = FormatRatio(reward.Div(perShare))
		}
	}

	return res
}
