package classifier

import "fmt"

// InvalidVectorError reports a malformed classifier output vector.
type InvalidVectorError struct {
	Reason string
}

func (e *InvalidVectorError) Error() string {
	return fmt.Sprintf("invalid probability vector: %s", e.Reason)
}

// InvalidImageError reports an image payload that cannot be decoded.
type InvalidImageError struct {
	Err error
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image payload: %v", e.Err)
}

func (e *InvalidImageError) Unwrap() error { return e.Err }

// UnsupportedMediaError reports a mime type outside the allow-list.
type UnsupportedMediaError struct {
	MimeType string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported image mime type: %s", e.MimeType)
}

// ImageTooLargeError reports a decoded image above the configured limit.
type ImageTooLargeError struct {
	Size  int
	Limit int
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("image too large: %d bytes exceeds limit of %d", e.Size, e.Limit)
}

// UnavailableError indicates the classifier backend is down, timed out or
// otherwise failed transiently.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier unavailable: %v", e.Err)
	}
	return "classifier unavailable"
}

func (e *UnavailableError) Unwrap() error { return e.Err }
