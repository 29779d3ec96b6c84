package storefront

import (
	"math/big"

	"github.com/holiman/uint256"
)

var hundred = uint256.NewInt(PercentDenominator)

// quote prices qty units at price less discountPct and splits the commission
// off the discounted amount. Both results are rounded down.
func quote(price *big.Int, qty, discountPct, commissionPct uint64) (due, commission *big.Int, err error) {
	if discountPct > PercentDenominator || commissionPct > PercentDenominator {
		return nil, nil, ErrInvalidDiscount
	}
	unit, overflow := uint256.FromBig(bigOrZero(price))
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	gross, overflow := new(uint256.Int).MulOverflow(unit, uint256.NewInt(qty))
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	net, overflow := new(uint256.Int).MulDivOverflow(gross, uint256.NewInt(PercentDenominator-discountPct), hundred)
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	cut, overflow := new(uint256.Int).MulDivOverflow(net, uint256.NewInt(commissionPct), hundred)
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	return net.ToBig(), cut.ToBig(), nil
}

func addBig(a, b *big.Int) *big.Int {
	return new(big.Int).Add(bigOrZero(a), bigOrZero(b))
}
