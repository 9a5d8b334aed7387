package sim

import "errors"

// MultiWriter fan-outs scan records to multiple writers.
type MultiWriter struct {
	writers []ResultWriter
}

// NewMultiWriter creates a new MultiWriter. Nil writers are skipped.
func NewMultiWriter(ws ...ResultWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// WriteResult sends a record to all writers. Every writer is attempted; the
// errors are joined.
func (mw *MultiWriter) WriteResult(rec ScanRecord) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.WriteResult(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer that holds resources.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if c, ok := w.(closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
