package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection         = "users"
	conversationsCollection = "conversations"
)

type userDoc struct {
	ID          string    `bson:"_id"`
	PhoneNumber string    `bson:"phoneNumber"`
	Name        string    `bson:"name,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type conversationDoc struct {
	ID        string    `bson:"_id"`
	User      string    `bson:"user"`
	Messages  []string  `bson:"messages"`
	CreatedAt time.Time `bson:"createdAt"`
}

// MongoStore keeps records in MongoDB and relies on TTL indexes on createdAt
// for expiry. Find also filters by age because the TTL monitor runs lazily.
// DeleteExpired covers the time before the indexes exist.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	expiry Expiry
	now    func() time.Time

	mu      sync.Mutex
	indexed bool
}

// NewMongoStore creates a client for uri. The driver connects lazily; use
// Ping to check reachability.
func NewMongoStore(uri, database string, expiry Expiry) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	return &MongoStore{
		client: client,
		db:     client.Database(database),
		expiry: expiry,
		now:    time.Now,
	}, nil
}

func (s *MongoStore) users() *mongo.Collection {
	return s.db.Collection(usersCollection)
}

func (s *MongoStore) conversations() *mongo.Collection {
	return s.db.Collection(conversationsCollection)
}

// Ping checks that the server is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

// EnsureIndexes creates the lookup and TTL indexes for both collections.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "phoneNumber", Value: 1}}},
			{
				Keys:    bson.D{{Key: "createdAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(s.expiry.User / time.Second)),
			},
		},
		conversationsCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}}},
			{
				Keys:    bson.D{{Key: "createdAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(s.expiry.Conversation / time.Second)),
			},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes for %s: %w", name, err)
		}
	}

	s.mu.Lock()
	s.indexed = true
	s.mu.Unlock()
	return nil
}

func (s *MongoStore) hasIndexes() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexed
}

// DeleteExpired removes every record past its TTL. Until EnsureIndexes has
// succeeded once it is retried here first, so a server that was down at
// startup still ends up with TTL indexes.
func (s *MongoStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var indexErr error
	if !s.hasIndexes() {
		indexErr = s.EnsureIndexes(ctx)
	}

	users, err := s.users().DeleteMany(ctx, expiredFilter(s.expiry.UserCutoff(now)))
	if err != nil {
		return 0, errors.Join(indexErr, fmt.Errorf("delete expired users: %w", err))
	}
	convs, err := s.conversations().DeleteMany(ctx, expiredFilter(s.expiry.ConversationCutoff(now)))
	if err != nil {
		return int(users.DeletedCount), errors.Join(indexErr, fmt.Errorf("delete expired conversations: %w", err))
	}
	return int(users.DeletedCount + convs.DeletedCount), indexErr
}

// expiredFilter matches documents created at or before cutoff.
func expiredFilter(cutoff time.Time) bson.M {
	return bson.M{"createdAt": bson.M{"$lte": cutoff}}
}

func (s *MongoStore) FindUser(ctx context.Context, phone string) (*User, error) {
	var doc userDoc
	err := s.users().FindOne(ctx, bson.M{
		"phoneNumber": phone,
		"createdAt":   bson.M{"$gt": s.expiry.UserCutoff(s.now())},
	}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", phone, err)
	}
	return &User{ID: doc.ID, PhoneNumber: doc.PhoneNumber, Name: doc.Name, CreatedAt: doc.CreatedAt}, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, phone string) (*User, error) {
	u := newUser(phone, s.now())
	if _, err := s.users().InsertOne(ctx, toUserDoc(u)); err != nil {
		return nil, fmt.Errorf("insert user %s: %w", phone, err)
	}
	return u, nil
}

func (s *MongoStore) SaveUser(ctx context.Context, user *User) error {
	_, err := s.users().ReplaceOne(ctx, bson.M{"_id": user.ID}, toUserDoc(user), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.PhoneNumber, err)
	}
	return nil
}

func (s *MongoStore) FindConversation(ctx context.Context, user string) (*Conversation, error) {
	var doc conversationDoc
	err := s.conversations().FindOne(ctx, bson.M{
		"user":      user,
		"createdAt": bson.M{"$gt": s.expiry.ConversationCutoff(s.now())},
	}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", user, err)
	}
	msgs := doc.Messages
	if msgs == nil {
		msgs = []string{}
	}
	return &Conversation{ID: doc.ID, User: doc.User, Messages: msgs, CreatedAt: doc.CreatedAt}, nil
}

func (s *MongoStore) CreateConversation(ctx context.Context, user string) (*Conversation, error) {
	c := newConversation(user, s.now())
	if _, err := s.conversations().InsertOne(ctx, toConversationDoc(c)); err != nil {
		return nil, fmt.Errorf("insert conversation %s: %w", user, err)
	}
	return c, nil
}

func (s *MongoStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	_, err := s.conversations().ReplaceOne(ctx, bson.M{"_id": conv.ID}, toConversationDoc(conv), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.User, err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toUserDoc(u *User) userDoc {
	return userDoc{ID: u.ID, PhoneNumber: u.PhoneNumber, Name: u.Name, CreatedAt: u.CreatedAt}
}

func toConversationDoc(c *Conversation) conversationDoc {
	msgs := c.Messages
	if msgs == nil {
		msgs = []string{}
	}
	return conversationDoc{ID: c.ID, User: c.User, Messages: msgs, CreatedAt: c.CreatedAt}
}
