// Package service holds the reservation lifecycle orchestrator.  A
// reservation is only stored once the user and parking-lot checks pass, and
// every stored reservation gets a confirmation deadline.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Jinnapat/jod-rod-matching-service/internal/apperror"
	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
	"github.com/Jinnapat/jod-rod-matching-service/internal/metrics"
	"github.com/Jinnapat/jod-rod-matching-service/internal/model"
	"github.com/Jinnapat/jod-rod-matching-service/internal/queue"
	"github.com/Jinnapat/jod-rod-matching-service/internal/repository"
)

// MaxParkingLotIDLen matches the width of reservations.parking_lot_id.
const MaxParkingLotIDLen = 255

// Store is the persistence the orchestrator needs.  It is satisfied by
// *repository.ReservationRepo.
type Store interface {
	Insert(ctx context.Context, res *model.Reservation) (string, error)
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindAll(ctx context.Context) ([]model.Reservation, error)
	FindByParkingLot(ctx context.Context, parkingLotID string) ([]model.Reservation, error)
	FindActive(ctx context.Context, f repository.ActiveFilter, now time.Time) ([]model.Reservation, error)
	CountActive(ctx context.Context, f repository.ActiveFilter, now time.Time) (int, error)
	SetConfirmed(ctx context.Context, id string) (bool, error)
}

// Checker is satisfied by *upstream.Client.
type Checker interface {
	CheckUserExists(ctx context.Context, userID int64) (*model.UserInfo, error)
	CheckParkingLotExists(ctx context.Context, parkingLotID string) (*model.ParkingLot, error)
	CheckAvailability(ctx context.Context, parkingLotID string) (*model.ParkingLot, error)
	ReportLate(ctx context.Context, userID int64) error
	GetPenaltyStatus(ctx context.Context, userID int64) (*model.PenaltyStatus, error)
	Username(ctx context.Context, userID int64) (string, error)
	LotName(ctx context.Context, parkingLotID string) (string, error)
}

// Publisher sends a notification to the channel named by key.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// Scheduler is satisfied by *scheduler.Scheduler.
type Scheduler interface {
	Arm(id string, fireAt time.Time, fn func()) error
	Cancel(id string) bool
}

// Options tunes a ReservationService.
type Options struct {
	// Duration is the confirmation window granted to a new reservation.
	Duration time.Duration
	// CancelOnConfirm disarms the deadline once a reservation is
	// confirmed.  When false a confirmed reservation still receives its
	// late notification at the deadline.
	CancelOnConfirm bool
	// ExpiryTimeout bounds the upstream calls made by the expiry callback.
	ExpiryTimeout time.Duration
	Metrics       *metrics.Collector
	Now           func() time.Time
	// NewID generates reservation ids.  Defaults to random UUIDs.
	NewID func() string
}

type ReservationService struct {
	store     Store
	checker   Checker
	publisher Publisher
	scheduler Scheduler

	duration        time.Duration
	cancelOnConfirm bool
	expiryTimeout   time.Duration
	metrics         *metrics.Collector
	now             func() time.Time
	newID           func() string
}

func NewReservationService(store Store, checker Checker, publisher Publisher, sched Scheduler, opts Options) *ReservationService {
	if opts.Duration <= 0 {
		opts.Duration = 15 * time.Minute
	}
	if opts.ExpiryTimeout <= 0 {
		opts.ExpiryTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &ReservationService{
		store:           store,
		checker:         checker,
		publisher:       publisher,
		scheduler:       sched,
		duration:        opts.Duration,
		cancelOnConfirm: opts.CancelOnConfirm,
		expiryTimeout:   opts.ExpiryTimeout,
		metrics:         opts.Metrics,
		now:             opts.Now,
		newID:           opts.NewID,
	}
}

// Reserve creates a pending reservation for userID at parkingLotID and
// returns its id.  The user must exist and the lot must have a free slot;
// if either check fails nothing is stored and no deadline is armed.
//
// Availability is read at call time and not held, so two concurrent
// requests for the last slot can both pass.  The parking-space service
// owns the slot count.
func (s *ReservationService) Reserve(ctx context.Context, userID int64, parkingLotID string) (string, error) {
	if userID <= 0 {
		return "", s.reject(apperror.BadRequest("userId must be a positive integer"))
	}
	if parkingLotID == "" {
		return "", s.reject(apperror.BadRequest("parkingLotId is required"))
	}
	if len(parkingLotID) > MaxParkingLotIDLen {
		return "", s.reject(apperror.BadRequest(fmt.Sprintf("parkingLotId must be at most %d bytes", MaxParkingLotIDLen)))
	}

	user, err := s.checker.CheckUserExists(ctx, userID)
	if err != nil {
		return "", s.reject(err)
	}
	lot, err := s.checker.CheckAvailability(ctx, parkingLotID)
	if err != nil {
		return "", s.reject(err)
	}

	now := s.now()
	res := model.Reservation{
		ID:           s.newID(),
		UserID:       userID,
		ParkingLotID: parkingLotID,
		LateAt:       now.Add(s.duration),
		CreatedAt:    now,
	}
	id := res.ID

	// The deadline is armed before the row exists so a stored reservation
	// always has one; a failed insert disarms it again.
	snapshot := model.ReservationDetail{Reservation: res, Username: user.Username, ParkingLotName: lot.Name}
	if err := s.scheduler.Arm(id, res.LateAt, func() { s.expire(snapshot) }); err != nil {
		logger.ErrorContext(ctx, "failed to arm reservation deadline", "reservation_id", id, "error", err)
		return "", s.reject(apperror.Internal("failed to schedule reservation deadline", err))
	}
	if _, err := s.store.Insert(ctx, &res); err != nil {
		s.scheduler.Cancel(id)
		return "", s.reject(apperror.Internal("failed to save reservation", err))
	}

	s.notify(ctx, parkingLotID, queue.ReservationEvent{
		Reservation: snapshot,
		Status:      queue.StatusPending,
		OccurredAt:  now,
	})
	s.metrics.RecordCreated()
	logger.InfoContext(ctx, "reservation created",
		"reservation_id", id, "user_id", userID, "parking_lot_id", parkingLotID, "late_at", res.LateAt)
	return id, nil
}

// Confirm marks a pending reservation as confirmed and notifies its user.
// Unknown ids and reservations that are already confirmed both fail with
// NotFound.
func (s *ReservationService) Confirm(ctx context.Context, reservationID string) error {
	if reservationID == "" {
		return apperror.BadRequest("reservationId is required")
	}
	matched, err := s.store.SetConfirmed(ctx, reservationID)
	if err != nil {
		return apperror.Internal("failed to confirm reservation", err)
	}
	if !matched {
		return apperror.NotFound("no reservation with that id")
	}
	if s.cancelOnConfirm && s.scheduler.Cancel(reservationID) {
		logger.DebugContext(ctx, "deadline disarmed on confirm", "reservation_id", reservationID)
	}

	res, err := s.store.FindByID(ctx, reservationID)
	if err != nil {
		return storeErr(err)
	}
	detail := s.WithLotNames(ctx, []model.ReservationDetail{{Reservation: *res}})[0]
	s.notify(ctx, userKey(res.UserID), queue.ReservationEvent{
		Reservation: detail,
		Status:      queue.StatusConfirmed,
		OccurredAt:  s.now(),
	})
	s.metrics.RecordConfirmed()
	logger.InfoContext(ctx, "reservation confirmed", "reservation_id", reservationID, "user_id", res.UserID)
	return nil
}

// expire runs at a reservation's deadline.  It does not consult the store:
// a reservation confirmed after arming is still reported late unless the
// timer was cancelled.
func (s *ReservationService) expire(snapshot model.ReservationDetail) {
	ctx, cancel := context.WithTimeout(context.Background(), s.expiryTimeout)
	defer cancel()
	log := logger.Default().With("reservation_id", snapshot.ID, "user_id", snapshot.UserID)

	if err := s.checker.ReportLate(ctx, snapshot.UserID); err != nil {
		s.metrics.RecordExpiryFailure()
		log.Error("failed to report late reservation", "error", err)
		return
	}
	penalty, err := s.checker.GetPenaltyStatus(ctx, snapshot.UserID)
	if err != nil {
		s.metrics.RecordExpiryFailure()
		log.Error("failed to fetch penalty status", "error", err)
		return
	}

	status := queue.StatusLated
	if penalty.Banned() {
		status = queue.StatusBanned
	}
	quota := penalty.LeftQuota
	s.notify(ctx, userKey(snapshot.UserID), queue.ReservationEvent{
		Reservation:  snapshot,
		Status:       status,
		UnBannedDate: penalty.UnBannedDate,
		LeftQuota:    &quota,
		OccurredAt:   s.now(),
	})
	s.metrics.RecordExpired(string(status))
	log.Info("reservation expired", "status", status)
}

func (s *ReservationService) GetReservations(ctx context.Context) ([]model.Reservation, error) {
	rs, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to list reservations", err)
	}
	return rs, nil
}

// GetReservationsByParkingLotID lists every reservation made at a lot.  The
// lot must exist upstream, and a lot with no reservations is NotFound.
func (s *ReservationService) GetReservationsByParkingLotID(ctx context.Context, parkingLotID string) ([]model.Reservation, error) {
	if _, err := s.checker.CheckParkingLotExists(ctx, parkingLotID); err != nil {
		return nil, err
	}
	rs, err := s.store.FindByParkingLot(ctx, parkingLotID)
	if err != nil {
		return nil, apperror.Internal("failed to list reservations", err)
	}
	if len(rs) == 0 {
		return nil, apperror.NotFound("no reservation with that parking lot")
	}
	return rs, nil
}

func (s *ReservationService) GetReservationByID(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return res, nil
}

// GetActiveReservationsByUser lists the user's pending and occupied
// reservations.
func (s *ReservationService) GetActiveReservationsByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	rs, err := s.store.FindActive(ctx, repository.ActiveFilter{UserID: &userID}, s.now())
	if err != nil {
		return nil, apperror.Internal("failed to list active reservations", err)
	}
	return rs, nil
}

func (s *ReservationService) GetActiveReservationsByParkingLot(ctx context.Context, parkingLotID string) ([]model.Reservation, error) {
	rs, err := s.store.FindActive(ctx, repository.ActiveFilter{ParkingLotID: parkingLotID}, s.now())
	if err != nil {
		return nil, apperror.Internal("failed to list active reservations", err)
	}
	return rs, nil
}

// CountActiveReservations returns how many reservations currently hold or
// are about to hold a slot at the lot.
func (s *ReservationService) CountActiveReservations(ctx context.Context, parkingLotID string) (int, error) {
	n, err := s.store.CountActive(ctx, repository.ActiveFilter{ParkingLotID: parkingLotID}, s.now())
	if err != nil {
		return 0, apperror.Internal("failed to count active reservations", err)
	}
	return n, nil
}

// WithUsernames fills Username on each entry.  Lookups are made once per
// distinct user; a failed lookup leaves the field empty.
func (s *ReservationService) WithUsernames(ctx context.Context, ds []model.ReservationDetail) []model.ReservationDetail {
	names := make(map[int64]string)
	for i := range ds {
		uid := ds[i].UserID
		name, ok := names[uid]
		if !ok {
			var err error
			name, err = s.checker.Username(ctx, uid)
			if err != nil {
				logger.DebugContext(ctx, "username lookup failed", "user_id", uid, "error", err)
			}
			names[uid] = name
		}
		ds[i].Username = name
	}
	return ds
}

// WithLotNames fills ParkingLotName on each entry, one lookup per lot.
func (s *ReservationService) WithLotNames(ctx context.Context, ds []model.ReservationDetail) []model.ReservationDetail {
	names := make(map[string]string)
	for i := range ds {
		lid := ds[i].ParkingLotID
		name, ok := names[lid]
		if !ok {
			var err error
			name, err = s.checker.LotName(ctx, lid)
			if err != nil {
				logger.DebugContext(ctx, "lot name lookup failed", "parking_lot_id", lid, "error", err)
			}
			names[lid] = name
		}
		ds[i].ParkingLotName = name
	}
	return ds
}

// notify never fails the caller; delivery problems are only logged.
func (s *ReservationService) notify(ctx context.Context, key string, ev queue.ReservationEvent) {
	if err := s.publisher.Publish(ctx, key, ev); err != nil {
		logger.WarnContext(ctx, "failed to publish notification",
			"channel", key, "status", ev.Status, "reservation_id", ev.Reservation.ID, "error", err)
	}
}

func (s *ReservationService) reject(err error) error {
	s.metrics.RecordRejected(reason(err))
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperror.ErrBadRequest):
		return "bad_request"
	default:
		return "internal"
	}
}

func storeErr(err error) error {
	if errors.Is(err, repository.ErrReservationNotFound) {
		return apperror.NotFound("no reservation with that id")
	}
	return apperror.Internal("failed to load reservation", err)
}

func userKey(userID int64) string { return strconv.FormatInt(userID, 10) }
