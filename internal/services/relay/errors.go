package relay

import "errors"

var (
	// ErrStoreFetchFailed means a batch could not be read from the store.
	ErrStoreFetchFailed = errors.New("store fetch failed")
	// ErrPublishFailed means the broker did not accept a message. The attempt is not recorded.
	ErrPublishFailed = errors.New("publish failed")
	// ErrStoreUpdateFailed means a delivery outcome could not be written back to the store.
	ErrStoreUpdateFailed = errors.New("store update failed")
	// ErrEncodeFailed means a message could not be turned into an envelope.
	ErrEncodeFailed = errors.New("envelope encode failed")
	// ErrPoolClosed is returned by Submit after the pool has been closed.
	ErrPoolClosed = errors.New("dispatch pool closed")
)
