package storefront

import (
	"errors"

	nativecommon "storefront/native/common"
)

// Every failure surfaces exactly one of these reasons. The error text is the
// canonical reason string returned to API clients.
var (
	ErrTierUnavailable          = errors.New("TIER_UNAVAILABLE")
	ErrTierAlreadyInitialized   = errors.New("TIER_ALREADY_INITIALIZED")
	ErrSaleAlreadyInitialized   = errors.New("SALE_ALREADY_INITIALIZED")
	ErrPresaleAlreadyInitialize = errors.New("PRESALE_ALREADY_INITIALIZED")
	ErrSaleNotInitialized       = errors.New("SALE_NOT_INITIALIZED")
	ErrPresaleNotInitialized    = errors.New("PRESALE_NOT_INITIALIZED")
	ErrInvalidSupply            = errors.New("INVALID_SUPPLY")
	ErrInvalidMaxPerTx          = errors.New("INVALID_MAX_PER_TX")
	ErrInvalidMaxPerWallet      = errors.New("INVALID_MAX_PER_WALLET")
	ErrInvalidPrice             = errors.New("INVALID_PRICE")
	ErrInvalidSaleTime          = errors.New("INVALID_SALE_TIME")
	ErrInvalidPresaleTime       = errors.New("INVALID_PRESALE_TIME")
	ErrInvalidInputLengths      = errors.New("INVALID_INPUT_LENGTHS")
	ErrInvalidPhase             = errors.New("INVALID_PHASE")
	ErrInvalidMerkleRoot        = errors.New("INVALID_MERKLE_ROOT")
	ErrInvalidPromoCode         = errors.New("INVALID_PROMO_CODE")
	ErrInvalidDiscount          = errors.New("INVALID_DISCOUNT")
	ErrInvalidCommission        = errors.New("INVALID_COMMISION")
	ErrInvalidReferrer          = errors.New("INVALID_REFERRER")
	ErrInvalidTierSize          = errors.New("INVALID_TIER_SIZE")
	ErrInvalidMerkleSize        = errors.New("INVALID_MERKLE_SIZE")
	ErrInvalidQuantity          = errors.New("INVALID_QUANTITY")
	ErrInvalidIndex             = errors.New("INVALID_INDEX")
	ErrInvalidAccount           = errors.New("INVALID_ACCOUNT")

	ErrUserNotWhitelisted = errors.New("USER_NOT_WHITELISTED")
	ErrSaleNotActive      = errors.New("SALE_NOT_ACTIVE")
	ErrPresaleNotActive   = errors.New("PRESALE_NOT_ACTIVE")
	ErrPromoNotActive     = errors.New("PROMO_NOT_ACTIVE")

	ErrMaxMintExceeded      = errors.New("MAX_MINT_EXCEEDED")
	ErrMaxSupplyExceeded    = errors.New("MAX_SUPPLY_EXCEEDED")
	ErrMaxPerTxExceeded     = errors.New("MAX_PER_TX_EXCEEDED")
	ErrMaxPerWalletExceeded = errors.New("MAX_PER_WALLET_EXCEEDED")

	ErrInsufficientFund = errors.New("INSUFFICIENT_FUND")
	ErrZeroBalance      = errors.New("ZERO_BALANCE")
	ErrAmountOverflow   = errors.New("AMOUNT_OVERFLOW")

	ErrUnauthorized = errors.New("UNAUTHORIZED")

	ErrLedgerImbalance = errors.New("LEDGER_IMBALANCE")
	errNilState        = errors.New("storefront engine: state not configured")
	errNilBank         = errors.New("storefront engine: value ledger not configured")
	errNilIssuer       = errors.New("storefront engine: issuer not configured")
	errNilTreasury     = errors.New("storefront engine: treasury not configured")
)

// Category groups failure reasons.
type Category string

const (
	CategoryConfiguration Category = "configuration"
	CategoryEligibility   Category = "eligibility"
	CategoryCapacity      Category = "capacity"
	CategoryPayment       Category = "payment"
	CategoryAuthorization Category = "authorization"
	CategoryInternal      Category = "internal"
)

var categories = []struct {
	err      error
	category Category
}{
	{ErrTierUnavailable, CategoryConfiguration},
	{ErrTierAlreadyInitialized, CategoryConfiguration},
	{ErrSaleAlreadyInitialized, CategoryConfiguration},
	{ErrPresaleAlreadyInitialize, CategoryConfiguration},
	{ErrSaleNotInitialized, CategoryConfiguration},
	{ErrPresaleNotInitialized, CategoryConfiguration},
	{ErrInvalidSupply, CategoryConfiguration},
	{ErrInvalidMaxPerTx, CategoryConfiguration},
	{ErrInvalidMaxPerWallet, CategoryConfiguration},
	{ErrInvalidPrice, CategoryConfiguration},
	{ErrInvalidSaleTime, CategoryConfiguration},
	{ErrInvalidPresaleTime, CategoryConfiguration},
	{ErrInvalidInputLengths, CategoryConfiguration},
	{ErrInvalidPhase, CategoryConfiguration},
	{ErrInvalidMerkleRoot, CategoryConfiguration},
	{ErrInvalidPromoCode, CategoryConfiguration},
	{ErrInvalidDiscount, CategoryConfiguration},
	{ErrInvalidCommission, CategoryConfiguration},
	{ErrInvalidReferrer, CategoryConfiguration},
	{ErrInvalidTierSize, CategoryConfiguration},
	{ErrInvalidMerkleSize, CategoryConfiguration},
	{ErrInvalidQuantity, CategoryConfiguration},
	{ErrInvalidIndex, CategoryConfiguration},
	{ErrInvalidAccount, CategoryConfiguration},
	{ErrUserNotWhitelisted, CategoryEligibility},
	{ErrSaleNotActive, CategoryEligibility},
	{ErrPresaleNotActive, CategoryEligibility},
	{ErrPromoNotActive, CategoryEligibility},
	{nativecommon.ErrModulePaused, CategoryEligibility},
	{ErrMaxMintExceeded, CategoryCapacity},
	{ErrMaxSupplyExceeded, CategoryCapacity},
	{ErrMaxPerTxExceeded, CategoryCapacity},
	{ErrMaxPerWalletExceeded, CategoryCapacity},
	{ErrInsufficientFund, CategoryPayment},
	{ErrZeroBalance, CategoryPayment},
	{ErrAmountOverflow, CategoryPayment},
	{ErrUnauthorized, CategoryAuthorization},
	{nativecommon.ErrReentrantCall, CategoryAuthorization},
}

// CategoryOf classifies err. Unknown errors are internal.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	for _, entry := range categories {
		if errors.Is(err, entry.err) {
			return entry.category
		}
	}
	return CategoryInternal
}

// Reason returns the canonical reason string for err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "MODULE_PAUSED"
	case errors.Is(err, nativecommon.ErrReentrantCall):
		return "REENTRANT_CALL"
	}
	for _, entry := range categories {
		if errors.Is(err, entry.err) {
			return entry.err.Error()
		}
	}
	return "INTERNAL"
}
