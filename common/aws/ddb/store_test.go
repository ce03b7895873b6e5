package ddb

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestExpired(t *testing.T) {
	store := &DynamoStore{now: func() time.Time { return time.Unix(1_700_000_000, 0) }}
	tests := map[string]struct {
		item     kvItem
		expected bool
	}{
		"string without expiry": {
			item: kvItem{Key: "open:bob", Field: stringField, Value: "poll:c1:lilly:1"},
		},
		"string before expiry": {
			item: kvItem{Key: "open:bob", Field: stringField, Expiration: 1_700_000_001},
		},
		"string at expiry": {
			item:     kvItem{Key: "open:bob", Field: stringField, Expiration: 1_700_000_000},
			expected: true,
		},
		"string after expiry": {
			item:     kvItem{Key: "open:bob", Field: stringField, Expiration: 1_600_000_000},
			expected: true,
		},
		"hash fields never expire": {
			item: kvItem{Key: "poll:c1:lilly:1", Field: hashFieldPrefix + "bob", Expiration: 1_600_000_000},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if expired := store.expired(test.item); expired != test.expected {
				t.Errorf("expected expired=%v, got %v", test.expected, expired)
			}
		})
	}
}

func TestItemKey(t *testing.T) {
	tests := map[string]struct {
		key   string
		field string
	}{
		"string value": {
			key:   "open:bob",
			field: stringField,
		},
		"hash field": {
			key:   "poll:c1:lilly:1700000000.25",
			field: hashFieldPrefix + "bob",
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			key := itemKey(test.key, test.field)
			if len(key) != 2 {
				t.Fatalf("expected only the key attributes, got %v", key)
			}
			if k, ok := key[attrKey].(*types.AttributeValueMemberS); !ok || k.Value != test.key {
				t.Errorf("expected %s=%s, got %v", attrKey, test.key, key[attrKey])
			}
			if f, ok := key[attrField].(*types.AttributeValueMemberS); !ok || f.Value != test.field {
				t.Errorf("expected %s=%s, got %v", attrField, test.field, key[attrField])
			}
		})
	}
}

func TestBatchRetryDelay(t *testing.T) {
	expected := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, want := range expected {
		if got := batchRetryDelay(i + 1); got != want {
			t.Errorf("retry %d: expected %s, got %s", i+1, want, got)
		}
	}
}
