//go:build !linux

package transport

import (
	"fmt"
	"runtime"

	fetcherrors "github.com/nczempin/sockfetch/errors"
)

func newUringTransport(kind Kind) (Transport, error) {
	return nil, fetcherrors.NewTransportError(fetcherrors.Unsupported,
		fmt.Errorf("%s transport requires linux, running on %s", kind, runtime.GOOS))
}
