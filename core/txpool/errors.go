package txpool

import "errors"

var (
	// ErrAlreadyKnown is returned if the transaction is already contained
	// within the pool.
	ErrAlreadyKnown = errors.New("already known")

	// ErrKnownBad is returned if the transaction's hash is cached in the
	// recently-rejected LRU from an earlier import attempt.
	ErrKnownBad = errors.New("bad transaction, known bad hash")

	// ErrInvalidSender is returned if the transaction contains an invalid
	// signature, so no sender could be recovered.
	ErrInvalidSender = errors.New("invalid sender")

	// ErrUnderpriced is returned if a transaction's gas price (or, post
	// London, its effective tip) is below the minimum configured for the
	// pool.
	ErrUnderpriced = errors.New("transaction underpriced")

	// ErrReplaceUnderpriced is returned if a transaction is attempted to be
	// replaced with a different one, and the bump in price is not enough to
	// clear the configured replacement threshold.
	ErrReplaceUnderpriced = errors.New("replacement transaction underpriced")

	// ErrTxPoolOverflow is returned if the transaction pool is full and can't
	// accept another remote transaction, nor evict a cheaper one to make room.
	ErrTxPoolOverflow = errors.New("txpool is full")

	// ErrNegativeValue is a sanity error to ensure no one is able to specify a
	// transaction with a negative value.
	ErrNegativeValue = errors.New("negative value")

	// ErrOversizedData is returned if the size of the transaction exceeds the
	// limit this pool can meaningfully handle, and also if its gas limit is
	// below the intrinsic gas its data and access list need.
	ErrOversizedData = errors.New("oversized data")

	// ErrGasLimit is returned if a transaction's requested gas limit exceeds
	// the maximum allowance of the current block.
	ErrGasLimit = errors.New("exceeds block gas limit")

	// ErrNonceTooLow is returned if the nonce of a transaction is lower than
	// the one present in the local chain.
	ErrNonceTooLow = errors.New("nonce too low")

	// ErrNonceTooHigh is returned if a transaction's nonce would leave a gap
	// in the sender's pooled nonce sequence that the pool does not permit.
	ErrNonceTooHigh = errors.New("nonce too high, gapped pool disallows it")

	// ErrInsufficientFunds is returned if the total cost of executing a
	// transaction would exceed the balance of the sender's account.
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")

	// ErrFeeCapVeryHigh is returned if the transaction fee cap is greater
	// than the maximum bit length allowed.
	ErrFeeCapVeryHigh = errors.New("max fee per gas higher than 2^256-1")

	// ErrTipVeryHigh is returned if the transaction tip cap is greater than
	// the maximum bit length allowed.
	ErrTipVeryHigh = errors.New("max priority fee per gas higher than 2^256-1")

	// ErrTipAboveFeeCap is returned if the transaction tip is higher than its
	// fee cap.
	ErrTipAboveFeeCap = errors.New("max priority fee per gas higher than max fee per gas")

	// ErrAccountLimitExceeded is returned if a sender tries to queue more
	// transactions than the per-account queue limit.
	ErrAccountLimitExceeded = errors.New("account limit exceeded")

	// ErrRefusedServiceTransaction is returned when a zero-gas-price
	// transaction from an uncertified sender is rejected because the pool's
	// policy refuses service transactions.
	ErrRefusedServiceTransaction = errors.New("service transactions refused by pool policy")

	// ErrTxTypeNotSupported is returned if a transaction is of a type not
	// supported by the calling pool.
	ErrTxTypeNotSupported = errors.New("transaction type not supported")

	// ErrMaxInitCodeSizeExceeded is returned if a creation transaction's
	// init code exceeds the allowed size.
	ErrMaxInitCodeSizeExceeded = errors.New("max initcode size exceeded")
)
