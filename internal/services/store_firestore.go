package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestoreDoc wraps a JSON payload; Firestore cannot encode decimal values directly.
type firestoreDoc struct {
	Payload   string    `firestore:"payload"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// remaining reports how long the document stays valid after now.
// Documents are expired from their ExpiresAt instant on.
func (d firestoreDoc) remaining(now time.Time) (time.Duration, bool) {
	left := d.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0, false
	}
	return left, true
}

// FirestoreStore is a RemoteStore backed by one Firestore collection per cache kind.
// Expiry is checked on read.
type FirestoreStore struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	log.Printf("[INFO] firestore cache connected: %s", projectID)
	return &FirestoreStore{client: client, now: time.Now}, nil
}

func (s *FirestoreStore) Name() string { return "firestore" }

// docID escapes characters Firestore rejects in document IDs, such as '/'.
func docID(key string) string {
	return url.QueryEscape(key)
}

func (s *FirestoreStore) Get(ctx context.Context, collection, key string) ([]byte, time.Duration, bool, error) {
	snap, err := s.client.Collection(collection).Doc(docID(key)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}

	var doc firestoreDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, 0, false, err
	}
	ttl, live := doc.remaining(s.now())
	if !live {
		return nil, 0, false, nil
	}
	return []byte(doc.Payload), ttl, true, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, key string, data []byte, ttl time.Duration) error {
	_, err := s.client.Collection(collection).Doc(docID(key)).Set(ctx, firestoreDoc{
		Payload:   string(data),
		ExpiresAt: s.now().Add(ttl),
	})
	return err
}

func (s *FirestoreStore) Clear(ctx context.Context, collection string) error {
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return err
		}
	}
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.client.Collections(ctx)
	_, err := iter.Next()
	if err == iterator.Done {
		return nil
	}
	return err
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
