package artifact

import (
	"fmt"
	"strings"
)

// Location is a parsed artifact URL. Scheme and Bucket are empty for bare
// paths, which the store maps into its default bucket. The scheme is carried
// through verbatim so s3:// and gs:// URLs round-trip unchanged.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

// ParseLocation splits an artifact URL into scheme, bucket and key.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty artifact URL")
	}
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return Location{Key: strings.TrimLeft(raw, "/")}, nil
	}
	scheme := raw[:idx]
	rest := raw[idx+3:]
	if scheme == "" || rest == "" {
		return Location{}, fmt.Errorf("malformed artifact URL %q", raw)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Location{}, fmt.Errorf("artifact URL %q has no object key", raw)
	}
	return Location{Scheme: scheme, Bucket: parts[0], Key: parts[1]}, nil
}

func (l Location) String() string {
	if l.Scheme == "" {
		return "/" + l.Key
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Key)
}
