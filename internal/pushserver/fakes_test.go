package pushserver

import (
	"context"
	"sort"
	"sync"

	errs "storefront-push/internal/common/errors"
	"storefront-push/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	subs    map[string]models.StoredSubscription
	deleted []string
	lists   int
}

func newMemStore(subs ...models.StoredSubscription) *memStore {
	s := &memStore{subs: map[string]models.StoredSubscription{}}
	for _, sub := range subs {
		s.subs[sub.Endpoint] = sub
	}
	return s
}

func (s *memStore) Save(_ context.Context, sub *models.StoredSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.Endpoint] = *sub
	return nil
}

func (s *memStore) Delete(_ context.Context, ownerID, endpoint string) (*models.StoredSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[endpoint]
	if !ok || (ownerID != "" && sub.OwnerID != ownerID) {
		return nil, nil
	}
	delete(s.subs, endpoint)
	s.deleted = append(s.deleted, endpoint)
	return &sub, nil
}

func (s *memStore) Rotate(_ context.Context, oldEndpoint string, sub *models.StoredSubscription) (*models.StoredSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.subs[oldEndpoint]
	if !ok {
		return nil, errs.NewSubscriptionNotFoundError(oldEndpoint)
	}
	delete(s.subs, oldEndpoint)
	sub.OwnerID, sub.UserType = old.OwnerID, old.UserType
	s.subs[sub.Endpoint] = *sub
	return sub, nil
}

func (s *memStore) ListByOwner(_ context.Context, ownerID string) ([]models.StoredSubscription, error) {
	return s.filter(func(sub models.StoredSubscription) bool { return sub.OwnerID == ownerID }), nil
}

func (s *memStore) ListByUserType(_ context.Context, userType string) ([]models.StoredSubscription, error) {
	return s.filter(func(sub models.StoredSubscription) bool { return sub.UserType == userType }), nil
}

func (s *memStore) filter(keep func(models.StoredSubscription) bool) []models.StoredSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var out []models.StoredSubscription
	for _, sub := range s.subs {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

func (s *memStore) has(endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[endpoint]
	return ok
}

// fakeSender answers per endpoint; endpoints without an entry get 201.
type fakeSender struct {
	mu        sync.Mutex
	responses map[string]*Delivery
	errors    map[string]error
	payloads  [][]byte
	inFlight  int
	maxFlight int
	block     chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, sub models.StoredSubscription, payload []byte) (*Delivery, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err := f.errors[sub.Endpoint]; err != nil {
		return nil, err
	}
	if d, ok := f.responses[sub.Endpoint]; ok {
		return d, nil
	}
	return &Delivery{StatusCode: 201}, nil
}

func adminSub(endpoint, owner string) models.StoredSubscription {
	return models.StoredSubscription{
		OwnerID:  owner,
		UserType: "admin",
		Endpoint: endpoint,
		P256dh:   "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM",
		Auth:     "tBHItJI5svbpez7KI4CCXg",
	}
}

func validPushSubscription(endpoint string) models.PushSubscription {
	s := adminSub(endpoint, "")
	return models.PushSubscription{
		Endpoint: endpoint,
		Keys:     models.SubscriptionKeys{P256dh: s.P256dh, Auth: s.Auth},
	}
}
