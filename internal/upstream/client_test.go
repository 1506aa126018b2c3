package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jinnapat/jod-rod-matching-service/internal/apperror"
)

// fakeServices stands in for the user and parking-space services.
type fakeServices struct {
	userCalls atomic.Int32
	lotCalls  atomic.Int32
	lateCalls atomic.Int32
	available string
	penalty   string
	lateCode  int
	hang      time.Duration
}

func (f *fakeServices) server(t *testing.T) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.GET("/getUser/:id", func(c echo.Context) error {
		f.userCalls.Add(1)
		switch c.Param("id") {
		case "1":
			return c.JSON(http.StatusOK, echo.Map{"id": 1, "username": "alice", "email": "a@example.com"})
		case "7":
			return c.JSON(http.StatusOK, echo.Map{"id": "6650a1f2c3", "username": "bob"})
		}
		return c.JSON(http.StatusNotFound, echo.Map{"message": "not found"})
	})
	e.GET("/getParkingSpace/:id", func(c echo.Context) error {
		f.lotCalls.Add(1)
		if f.hang > 0 {
			time.Sleep(f.hang)
		}
		switch c.Param("id") {
		case "A":
			body := `{"id":"A","name":"Lot A","lat":13.7,"lng":100.5,"totalParking":10` + f.available + `}`
			return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(body))
		case "garbage":
			return c.String(http.StatusOK, "<html>")
		}
		return c.NoContent(http.StatusNotFound)
	})
	e.POST("/addLateCount/:id", func(c echo.Context) error {
		f.lateCalls.Add(1)
		code := f.lateCode
		if code == 0 {
			code = http.StatusOK
		}
		return c.NoContent(code)
	})
	e.GET("/getPenaltyStatus/:id", func(c echo.Context) error {
		if f.penalty == "" {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(f.penalty))
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, f *fakeServices, opts ...Option) *Client {
	srv := f.server(t)
	return NewClient(srv.URL, srv.URL+"/", time.Second, opts...)
}

func TestCheckUserExists(t *testing.T) {
	c := newTestClient(t, &fakeServices{})

	u, err := c.CheckUserExists(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = c.CheckUserExists(context.Background(), 2)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCheckUserExistsIgnoresDocumentID(t *testing.T) {
	c := newTestClient(t, &fakeServices{})

	u, err := c.CheckUserExists(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, int64(7), u.ID)
}

func TestCheckUserExistsTransportFailureIsNotFound(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.CheckUserExists(context.Background(), 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCheckAvailability(t *testing.T) {
	tests := []struct {
		name      string
		lot       string
		available string
		wantErr   error
	}{
		{name: "free slots", lot: "A", available: `,"available":5`},
		{name: "full", lot: "A", available: `,"available":0`, wantErr: apperror.ErrForbidden},
		{name: "missing count", lot: "A", available: ``, wantErr: apperror.ErrInternal},
		{name: "unknown lot", lot: "Z", wantErr: apperror.ErrNotFound},
		{name: "malformed body", lot: "garbage", wantErr: apperror.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeServices{available: tt.available})
			lot, err := c.CheckAvailability(context.Background(), tt.lot)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Lot A", lot.Name)
			assert.Equal(t, 5, *lot.Available)
		})
	}
}

func TestCheckAvailabilityIsNeverCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := &fakeServices{available: `,"available":3`}
	c := newTestClient(t, f, WithNameCache(NewNameCache(rdb, time.Minute)))

	for i := 0; i < 3; i++ {
		_, err := c.CheckAvailability(context.Background(), "A")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), f.lotCalls.Load())
}

func TestTimeoutBoundsUpstreamCall(t *testing.T) {
	f := &fakeServices{available: `,"available":3`, hang: 500 * time.Millisecond}
	srv := f.server(t)
	c := NewClient(srv.URL, srv.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := c.CheckParkingLotExists(context.Background(), "A")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestReportLate(t *testing.T) {
	f := &fakeServices{}
	c := newTestClient(t, f)
	require.NoError(t, c.ReportLate(context.Background(), 1))
	assert.Equal(t, int32(1), f.lateCalls.Load())

	f.lateCode = http.StatusBadGateway
	assert.ErrorIs(t, c.ReportLate(context.Background(), 1), apperror.ErrInternal)
}

func TestGetPenaltyStatus(t *testing.T) {
	f := &fakeServices{penalty: `{"status":"PENALTY","unBannedDate":"2026-02-01T00:00:00Z","leftQuota":0}`}
	c := newTestClient(t, f)

	ps, err := c.GetPenaltyStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ps.Banned())
	assert.Equal(t, "2026-02-01T00:00:00Z", ps.UnBannedDate)

	f.penalty = ""
	_, err = c.GetPenaltyStatus(context.Background(), 1)
	assert.ErrorIs(t, err, apperror.ErrInternal)
}

func TestNamesAreCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := &fakeServices{available: `,"available":1`}
	c := newTestClient(t, f, WithNameCache(NewNameCache(rdb, time.Minute)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		name, err := c.Username(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "alice", name)

		lot, err := c.LotName(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, "Lot A", lot)
	}
	assert.Equal(t, int32(1), f.userCalls.Load())
	assert.Equal(t, int32(1), f.lotCalls.Load())

	mr.FastForward(2 * time.Minute)
	_, err := c.Username(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.userCalls.Load())
}

func TestNamesWithoutCache(t *testing.T) {
	f := &fakeServices{}
	c := newTestClient(t, f)
	for i := 0; i < 2; i++ {
		_, err := c.Username(context.Background(), 1)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), f.userCalls.Load())

	_, err := c.LotName(context.Background(), "Z")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestNewNameCacheNilClient(t *testing.T) {
	assert.Nil(t, NewNameCache(nil, time.Minute))
}
