package uri

import (
	"strings"
)

// Scheme is the resource scheme this package resolves. The scheme token is
// matched case-insensitively; everything after it is case-sensitive.
const Scheme = "suis3://"

// FormatError reports a resource string that does not match the suis3
// grammar, or one whose shape does not fit the call site (an object-level
// operation given a bucket-only URI, or the reverse). It is always reported
// to the caller before any external call is made.
type FormatError struct {
	Raw string
}

func (e *FormatError) Error() string {
	return "SUIS3 object format error"
}

// ResourceURI is the parsed form of a suis3 resource string. Bucket is
// always non-empty. Object is either empty, or a path beginning with '/'.
// The captured substrings are passed through verbatim: no path collapsing,
// no percent-decoding.
type ResourceURI struct {
	Bucket string
	Object string
}

// BucketOnly reports whether the URI addresses the bucket itself rather
// than an object within it. An object segment of "" and of exactly "/"
// both address the bucket; callers branch on this to disambiguate
// bucket-level from object-level tag and list operations.
func (r ResourceURI) BucketOnly() bool {
	return r.Object == "" || r.Object == "/"
}

func isBucketChar(c byte) bool {
	return c >= 'A' && c <= 'Z' ||
		c >= 'a' && c <= 'z' ||
		c >= '0' && c <= '9' ||
		c == '.' || c == '_' || c == '-'
}

func isObjectChar(c byte) bool {
	return isBucketChar(c) || c == '/'
}

// Parse resolves a scheme-qualified resource string into bucket and
// object-path coordinates.
//
// The grammar is:
//
//	suis3://<bucket>[<object-path>]
//
// where bucket is one or more of [A-Za-z0-9._-] and object-path is zero or
// more of [A-Za-z0-9._/-]. Because '/' is not a bucket character, a
// non-empty object path always starts with '/'. Any byte outside these
// sets, anywhere in the string, is a format error; unlike a capture-group
// scan there is no silent truncation of trailing garbage.
func Parse(raw string) (ResourceURI, error) {
	if len(raw) < len(Scheme) || !strings.EqualFold(raw[:len(Scheme)], Scheme) {
		return ResourceURI{}, &FormatError{Raw: raw}
	}
	rest := raw[len(Scheme):]

	i := 0
	for i < len(rest) && isBucketChar(rest[i]) {
		i++
	}
	if i == 0 {
		return ResourceURI{}, &FormatError{Raw: raw}
	}
	bucket, object := rest[:i], rest[i:]

	for j := 0; j < len(object); j++ {
		if !isObjectChar(object[j]) {
			return ResourceURI{}, &FormatError{Raw: raw}
		}
	}

	return ResourceURI{Bucket: bucket, Object: object}, nil
}

// ParseObject parses raw and additionally requires a non-empty object
// segment. Object-level operations (delete, tag, get) use this so a
// bucket-only URI fails loudly instead of silently operating at bucket
// scope.
func ParseObject(raw string) (ResourceURI, error) {
	r, err := Parse(raw)
	if err != nil {
		return ResourceURI{}, err
	}
	if r.BucketOnly() {
		return ResourceURI{}, &FormatError{Raw: raw}
	}
	return r, nil
}

// ParseBucket parses raw and additionally requires the URI to be
// bucket-only. Bucket listing operations use this.
func ParseBucket(raw string) (ResourceURI, error) {
	r, err := Parse(raw)
	if err != nil {
		return ResourceURI{}, err
	}
	if !r.BucketOnly() {
		return ResourceURI{}, &FormatError{Raw: raw}
	}
	return r, nil
}
