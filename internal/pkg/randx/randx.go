/*
Package randx provides functions for generating unique identifiers.

It is used to tag optimistic outbound messages with a client correlation id so the
server's echo of the same message can be matched and not appended twice.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

// CorrelationPrefix marks ids generated by this client.
const CorrelationPrefix = "tmp_"

// CorrelationID generates a new client correlation id for an optimistic message.
func CorrelationID() string {
	return CorrelationPrefix + uuid.New().String()
}

// IsCorrelationID reports whether id has the shape produced by CorrelationID.
func IsCorrelationID(id string) bool {
	raw, ok := strings.CutPrefix(id, CorrelationPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
