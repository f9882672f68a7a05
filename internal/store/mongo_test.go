package store

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var _ Sweepable = (*MongoStore)(nil)

func bsonKeys(t *testing.T, v any) bson.M {
	t.Helper()
	raw, err := bson.Marshal(v)
	if err != nil {
		t.Fatalf("bson.Marshal() error = %v", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("bson.Unmarshal() error = %v", err)
	}
	return m
}

func TestMongoDocs_FieldNames(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	user := bsonKeys(t, toUserDoc(&User{ID: "u-1", PhoneNumber: "254711111111@s.whatsapp.net", Name: "Alice", CreatedAt: created}))
	for _, key := range []string{"_id", "phoneNumber", "name", "createdAt"} {
		if _, ok := user[key]; !ok {
			t.Errorf("user document missing %q: %v", key, user)
		}
	}
	if user["phoneNumber"] != "254711111111@s.whatsapp.net" || user["name"] != "Alice" {
		t.Errorf("user document = %v", user)
	}

	unnamed := bsonKeys(t, toUserDoc(&User{ID: "u-2", PhoneNumber: "p", CreatedAt: created}))
	if _, ok := unnamed["name"]; ok {
		t.Errorf("unnamed user should omit name: %v", unnamed)
	}

	conv := bsonKeys(t, toConversationDoc(&Conversation{ID: "c-1", User: "u", Messages: []string{"User: hi", "hello"}, CreatedAt: created}))
	for _, key := range []string{"_id", "user", "messages", "createdAt"} {
		if _, ok := conv[key]; !ok {
			t.Errorf("conversation document missing %q: %v", key, conv)
		}
	}
}

func TestToConversationDoc_NilMessages(t *testing.T) {
	doc := toConversationDoc(&Conversation{ID: "c-1", User: "u"})
	if doc.Messages == nil || len(doc.Messages) != 0 {
		t.Errorf("Messages = %#v, want empty non-nil slice", doc.Messages)
	}

	m := bsonKeys(t, doc)
	if arr, ok := m["messages"].(bson.A); !ok || len(arr) != 0 {
		t.Errorf("messages stored as %#v, want empty array", m["messages"])
	}
}

func TestExpiredFilter(t *testing.T) {
	cutoff := time.Date(2024, 4, 28, 12, 0, 0, 0, time.UTC)
	f := expiredFilter(cutoff)
	cond, ok := f["createdAt"].(bson.M)
	if !ok {
		t.Fatalf("filter = %v", f)
	}
	if got, ok := cond["$lte"].(time.Time); !ok || !got.Equal(cutoff) {
		t.Errorf("createdAt condition = %v, want $lte %v", cond, cutoff)
	}
}

func TestMongoStore_DeleteExpiredUnreachable(t *testing.T) {
	s, err := NewMongoStore("mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200", "test", DefaultExpiry())
	if err != nil {
		t.Fatalf("NewMongoStore() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.DeleteExpired(ctx, time.Now()); err == nil {
		t.Fatal("DeleteExpired() error = nil, want unreachable server error")
	}
	if s.hasIndexes() {
		t.Error("indexes marked as created after a failed attempt")
	}
}
