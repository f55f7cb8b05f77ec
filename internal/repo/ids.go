package repo

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Identifier formats accepted by SetIDFormat.
const (
	IDFormatUUID  = "uuid"
	IDFormatKSUID = "ksuid"
)

// newID produces identifiers for records inserted without one. It is chosen
// once at startup via SetIDFormat.
var newID = uuid.NewString

// SetIDFormat selects the generator used for store-assigned identifiers.
// KSUIDs sort by creation time, UUIDv4 values do not.
func SetIDFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", IDFormatUUID:
		newID = uuid.NewString
	case IDFormatKSUID:
		newID = func() string { return ksuid.New().String() }
	default:
		return fmt.Errorf("unknown id format %q", format)
	}
	return nil
}

// NewID returns a fresh identifier in the configured format.
func NewID() string { return newID() }
