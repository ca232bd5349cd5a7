package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

// --- getStringAttr Tests ---

func TestGetStringAttr_ExistingString(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"pk": events.NewStringAttribute("Fighter:1"),
	}

	result := getStringAttr(image, "pk")
	if result != "Fighter:1" {
		t.Errorf("expected 'Fighter:1', got %q", result)
	}
}

func TestGetStringAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewStringAttribute("value"),
	}

	result := getStringAttr(image, "pk")
	if result != "" {
		t.Errorf("expected empty string for missing key, got %q", result)
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	result := getStringAttr(image, "pk")
	if result != "" {
		t.Errorf("expected empty string for nil image, got %q", result)
	}
}

func TestGetStringAttr_NumberAttribute(t *testing.T) {
	// Wrong type is treated as absent rather than panicking.
	image := map[string]events.DynamoDBAttributeValue{
		"pk": events.NewNumberAttribute("42"),
	}

	result := getStringAttr(image, "pk")
	if result != "" {
		t.Errorf("expected empty string for number attribute, got %q", result)
	}
}

func TestGetStringAttr_UnicodeValue(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"sk": events.NewStringAttribute("h#日本語"),
	}

	result := getStringAttr(image, "sk")
	if result != "h#日本語" {
		t.Errorf("expected 'h#日本語', got %q", result)
	}
}

// --- streamKey Tests ---

func TestStreamKey_FromKeys(t *testing.T) {
	pk, sk := streamKey(events.DynamoDBStreamRecord{
		Keys: map[string]events.DynamoDBAttributeValue{
			"pk": events.NewStringAttribute("Fighter:1"),
			"sk": events.NewStringAttribute("h#name"),
		},
	})
	if pk != "Fighter:1" || sk != "h#name" {
		t.Errorf("expected Fighter:1/h#name, got %q/%q", pk, sk)
	}
}

func TestStreamKey_FallsBackToOldImage(t *testing.T) {
	pk, sk := streamKey(events.DynamoDBStreamRecord{
		OldImage: map[string]events.DynamoDBAttributeValue{
			"pk":  events.NewStringAttribute("Gang:2"),
			"sk":  events.NewStringAttribute("h#name"),
			"val": events.NewStringAttribute("Wolves"),
		},
	})
	if pk != "Gang:2" || sk != "h#name" {
		t.Errorf("expected Gang:2/h#name, got %q/%q", pk, sk)
	}
}

// --- removedRecordKey Tests ---

func TestRemovedRecordKey(t *testing.T) {
	change := func(pk, sk string) events.DynamoDBStreamRecord {
		return events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute(pk),
				"sk": events.NewStringAttribute(sk),
			},
		}
	}

	tests := []struct {
		name      string
		eventName string
		change    events.DynamoDBStreamRecord
		wantKey   string
		wantOK    bool
	}{
		{"hash field removed", "REMOVE", change("Fighter:1", "h#name"), "Fighter:1", true},
		{"insert", "INSERT", change("Fighter:1", "h#name"), "", false},
		{"modify", "MODIFY", change("Fighter:1", "h#name"), "", false},
		{"set member", "REMOVE", change("Gang:1:members", "s#3"), "", false},
		{"sorted member", "REMOVE", change("z:Fighter:weight", "z#1"), "", false},
		{"list element", "REMOVE", change("Fighter:1:moves", "l#00000000000000000001"), "", false},
		{"counter", "REMOVE", change("Fighter:id", "c#"), "", false},
		{"no key", "REMOVE", events.DynamoDBStreamRecord{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := removedRecordKey(events.DynamoDBEventRecord{
				EventName: tt.eventName,
				Change:    tt.change,
			})
			if key != tt.wantKey || ok != tt.wantOK {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.wantKey, tt.wantOK, key, ok)
			}
		})
	}
}

// --- Benchmark Tests ---

func BenchmarkRemovedRecordKey(b *testing.B) {
	record := events.DynamoDBEventRecord{
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute("Fighter:12345"),
				"sk": events.NewStringAttribute("h#name"),
			},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		removedRecordKey(record)
	}
}
