package client

import "sync"

// reader is the read half of a transport.
type reader interface {
	Read(buf []byte) (int, error)
}

// onFirstReturn wraps a reader and runs hook exactly once, right after the
// first Read returns and before its result reaches the caller. The hook runs
// whether that read produced data, zero bytes or an error.
type onFirstReturn struct {
	r    reader
	once sync.Once
	hook func()
}

func (o *onFirstReturn) Read(buf []byte) (int, error) {
	n, err := o.r.Read(buf)
	o.once.Do(o.hook)
	return n, err
}
