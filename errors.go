package fidokey

import "errors"

// Sentinel errors returned by the CORE's internal APIs. The Dispatcher
// is the only place these are folded into a wire StatusCode; no error
// value ever reaches the host directly.
var (
	// ErrStorageFull is returned by Store.Append when count has
	// already reached MaxSlots.
	ErrStorageFull = errors.New("fidokey: credential store is full")

	// ErrNotFound maps to StatusNotFound. Store.FindByAppID does not
	// return it: a miss is reported through its found result.
	ErrNotFound = errors.New("fidokey: no credential for app id hash")

	// ErrCryptoFailed maps to StatusCryptoFailed. The Crypto Adapter
	// does not return it: failure is reported through its ok result,
	// and the handlers emit StatusCryptoFailed directly.
	ErrCryptoFailed = errors.New("fidokey: crypto primitive failed")

	// ErrDeclined is returned by Dispatcher.confirm when the Confirmation
	// Gate did not observe a press within the confirmation window.
	ErrDeclined = errors.New("fidokey: user did not confirm")
)

// statusFor maps an internal error to the wire status byte a handler
// must emit. Any error not explicitly recognized maps to
// StatusBadParameter, which keeps the mapping total; in the handlers
// this is what a failing Store operation (an I/O or database error)
// produces.
func statusFor(err error) StatusCode {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrStorageFull):
		return StatusStorageFull
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrCryptoFailed):
		return StatusCryptoFailed
	case errors.Is(err, ErrDeclined):
		return StatusApproval
	default:
		return StatusBadParameter
	}
}
