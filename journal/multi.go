package journal

import "errors"

// Multi fans every event out to each sink. All sinks are attempted.
type Multi []EventLog

func (m Multi) Record(e Event) error {
	var errs []error
	for _, l := range m {
		if err := l.Record(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, l := range m {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
