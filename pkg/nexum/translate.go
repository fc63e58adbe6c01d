package nexum

import "context"

// Translator converts specific call outcomes into benign results. Attached
// per call site, never globally: the dispatcher itself always propagates
// errors untouched.
type Translator func(result interface{}, err error) (interface{}, error)

// Translate applies translators left to right to a call outcome.
//
//	content, err := nexum.Translate(c.Call(ctx, "content/get", params),
//	    nexum.NilOnStatus(404))
func Translate(result interface{}, err error, translators ...Translator) (interface{}, error) {
	for _, t := range translators {
		result, err = t(result, err)
	}

	return result, err
}

// NilOnStatus turns responses with any of the given HTTP statuses into a
// nil result with no error. Other errors pass through.
func NilOnStatus(statuses ...int) Translator {
	return func(result interface{}, err error) (interface{}, error) {
		status, ok := StatusOf(err)
		if !ok {
			return result, err
		}

		for _, s := range statuses {
			if status == s {
				return nil, nil
			}
		}

		return result, err
	}
}

// NilOnNotFound turns HTTP 404 into a nil result. The common "absent
// instead of error" lookup policy.
func NilOnNotFound() Translator {
	return NilOnStatus(404)
}

// FalseOnNotFound turns HTTP 404 into a false result. For existence-style
// lookups whose callers want a boolean, not an absent object.
func FalseOnNotFound() Translator {
	return func(result interface{}, err error) (interface{}, error) {
		if IsNotFound(err) {
			return false, nil
		}

		return result, err
	}
}

// NilOnStatusMessage turns responses with the given status whose body
// contains substr into a nil result. Used for benign, well-known server
// complaints such as "ARCHIVED content".
func NilOnStatusMessage(status int, substr string) Translator {
	return func(result interface{}, err error) (interface{}, error) {
		s, ok := StatusOf(err)
		if ok && s == status && ErrorBodyContains(err, substr) {
			return nil, nil
		}

		return result, err
	}
}

// CallFunc is a retryable call closure.
type CallFunc func(ctx context.Context) (interface{}, error)

// RetryOnStatuses re-invokes fn up to maxAttempts times while it fails
// with one of the given HTTP statuses. Any other outcome is returned
// immediately. Used for the "not up to date, re-fetch and retry" class of
// save conflicts.
func RetryOnStatuses(ctx context.Context, fn CallFunc, maxAttempts int, statuses ...int) (interface{}, error) {
	var (
		result interface{}
		err    error
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}

		status, ok := StatusOf(err)
		if !ok {
			return result, err
		}

		retryable := false

		for _, s := range statuses {
			if status == s {
				retryable = true

				break
			}
		}

		if !retryable {
			return result, err
		}
	}

	return result, err
}
