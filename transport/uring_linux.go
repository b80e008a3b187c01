//go:build linux

package transport

func newUringTransport(kind Kind) (Transport, error) {
	if kind == KindUringV2 {
		t, err := NewUringV2Transport()
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	t, err := NewUringTransport()
	if err != nil {
		return nil, err
	}
	return t, nil
}
