package repo

import (
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

func TestSetIDFormat(t *testing.T) {
	t.Cleanup(func() { _ = SetIDFormat(IDFormatUUID) })

	if err := SetIDFormat(""); err != nil {
		t.Fatalf("empty format should default to uuid: %v", err)
	}
	if _, err := uuid.Parse(NewID()); err != nil {
		t.Fatalf("expected a UUID: %v", err)
	}

	if err := SetIDFormat(" KSUID "); err != nil {
		t.Fatalf("SetIDFormat(ksuid): %v", err)
	}
	id := NewID()
	if _, err := ksuid.Parse(id); err != nil {
		t.Fatalf("expected a KSUID, got %q: %v", id, err)
	}
	if NewID() == id {
		t.Fatalf("ids should be unique")
	}

	if err := SetIDFormat("objectid"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
