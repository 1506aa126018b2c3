package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Jinnapat/jod-rod-matching-service/internal/apperror"
	"github.com/Jinnapat/jod-rod-matching-service/internal/model"
	"github.com/Jinnapat/jod-rod-matching-service/internal/queue"
	"github.com/Jinnapat/jod-rod-matching-service/internal/repository"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]model.Reservation
	seq     int
	inserts int
	failAll error
}

func newMemStore() *memStore { return &memStore{rows: make(map[string]model.Reservation)} }

func (m *memStore) Insert(_ context.Context, res *model.Reservation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return "", m.failAll
	}
	m.seq++
	m.inserts++
	r := *res
	if r.ID == "" {
		r.ID = fmt.Sprintf("res-%d", m.seq)
	}
	m.rows[r.ID] = r
	return r.ID, nil
}

func (m *memStore) put(r model.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = r
}

func (m *memStore) get(id string) (model.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	return r, ok
}

func (m *memStore) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return &r, nil
}

func (m *memStore) list(keep func(model.Reservation) bool) []model.Reservation {
	out := []model.Reservation{}
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) FindAll(_ context.Context) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	return m.list(func(model.Reservation) bool { return true }), nil
}

func (m *memStore) FindByParkingLot(_ context.Context, lot string) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(r model.Reservation) bool { return r.ParkingLotID == lot }), nil
}

func matches(f repository.ActiveFilter, r model.Reservation) bool {
	if f.ParkingLotID != "" && r.ParkingLotID != f.ParkingLotID {
		return false
	}
	if f.UserID != nil && r.UserID != *f.UserID {
		return false
	}
	return true
}

func (m *memStore) FindActive(_ context.Context, f repository.ActiveFilter, now time.Time) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(r model.Reservation) bool { return matches(f, r) && r.IsActive(now) }), nil
}

func (m *memStore) CountActive(ctx context.Context, f repository.ActiveFilter, now time.Time) (int, error) {
	rs, err := m.FindActive(ctx, f, now)
	return len(rs), err
}

func (m *memStore) SetConfirmed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return false, m.failAll
	}
	r, ok := m.rows[id]
	if !ok || r.Confirmed {
		return false, nil
	}
	r.Confirmed = true
	m.rows[id] = r
	return true, nil
}

// fakeChecker serves users and lots from maps.
type fakeChecker struct {
	mu        sync.Mutex
	users     map[int64]string
	lots      map[string]*model.ParkingLot
	penalty   model.PenaltyStatus
	lateErr   error
	lateCount map[int64]int
	calls     []string
}

func newFakeChecker() *fakeChecker {
	five := 5
	return &fakeChecker{
		users:     map[int64]string{1: "alice", 2: "bob"},
		lots:      map[string]*model.ParkingLot{"A": {ID: "A", Name: "Lot A", TotalParking: 10, Available: &five}},
		penalty:   model.PenaltyStatus{Status: model.PenaltyNormal, LeftQuota: 2},
		lateCount: make(map[int64]int),
	}
}

func (f *fakeChecker) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeChecker) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeChecker) CheckUserExists(_ context.Context, id int64) (*model.UserInfo, error) {
	f.record("user")
	name, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound(fmt.Sprintf("user %d not found", id))
	}
	return &model.UserInfo{ID: id, Username: name}, nil
}

func (f *fakeChecker) CheckParkingLotExists(_ context.Context, id string) (*model.ParkingLot, error) {
	f.record("lot")
	lot, ok := f.lots[id]
	if !ok {
		return nil, apperror.NotFound("cant get information about that parking lot")
	}
	return lot, nil
}

func (f *fakeChecker) CheckAvailability(ctx context.Context, id string) (*model.ParkingLot, error) {
	lot, err := f.CheckParkingLotExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if lot.Available == nil {
		return nil, apperror.Internal("missing availability", nil)
	}
	if *lot.Available <= 0 {
		return nil, apperror.Forbidden("the parking lot is full")
	}
	return lot, nil
}

func (f *fakeChecker) ReportLate(_ context.Context, id int64) error {
	f.record("late")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lateErr != nil {
		return f.lateErr
	}
	f.lateCount[id]++
	return nil
}

func (f *fakeChecker) GetPenaltyStatus(_ context.Context, _ int64) (*model.PenaltyStatus, error) {
	f.record("penalty")
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.penalty
	return &ps, nil
}

func (f *fakeChecker) Username(_ context.Context, id int64) (string, error) {
	f.record("username")
	name, ok := f.users[id]
	if !ok {
		return "", apperror.NotFound("user not found")
	}
	return name, nil
}

func (f *fakeChecker) LotName(_ context.Context, id string) (string, error) {
	f.record("lotname")
	lot, ok := f.lots[id]
	if !ok {
		return "", apperror.NotFound("lot not found")
	}
	return lot.Name, nil
}

// recorder captures notifications per channel key.
type recorder struct {
	mu     sync.Mutex
	events map[string][]queue.ReservationEvent
	signal chan string
	err    error
}

func newRecorder() *recorder {
	return &recorder{events: make(map[string][]queue.ReservationEvent), signal: make(chan string, 64)}
}

func (r *recorder) Publish(_ context.Context, key string, payload any) error {
	ev, ok := payload.(queue.ReservationEvent)
	if !ok {
		return errors.New("unexpected payload type")
	}
	r.mu.Lock()
	r.events[key] = append(r.events[key], ev)
	r.mu.Unlock()
	r.signal <- key
	return r.err
}

func (r *recorder) on(key string) []queue.ReservationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.ReservationEvent(nil), r.events[key]...)
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evs := range r.events {
		n += len(evs)
	}
	return n
}

// waitFor blocks until a notification arrives on key or d elapses.
func (r *recorder) waitFor(key string, d time.Duration) bool {
	deadline := time.After(d)
	for {
		select {
		case k := <-r.signal:
			if k == key {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
