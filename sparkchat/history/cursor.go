package history

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrBadCursor is returned when a page request carries an unparseable cursor.
var ErrBadCursor = errors.New("malformed history cursor")

// encodeCursor turns the boundary ordering key into an opaque token. The key
// is the (createdAt, id) pair of the oldest message in the returned page; the
// next page starts strictly before it in (createdAt, id) order, so messages
// sharing the boundary timestamp are never skipped.
func encodeCursor(t time.Time, id string) string {
	return strconv.FormatInt(t.UnixNano(), 10) + ":" + id
}

// decodeCursor parses a token back into the exclusive upper bound pair.
func decodeCursor(token string) (time.Time, string, error) {
	ts, id, ok := strings.Cut(token, ":")
	if !ok {
		return time.Time{}, "", ErrBadCursor
	}
	ns, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, "", ErrBadCursor
	}
	return time.Unix(0, ns).UTC(), id, nil
}
