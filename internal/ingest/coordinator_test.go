package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-sensor-backend/internal/model"
	"home-sensor-backend/internal/notification"
	"home-sensor-backend/internal/roomstate"
	"home-sensor-backend/internal/sensor"
)

var fixedNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu       sync.Mutex
	logs     []model.SensorLog
	alerts   []model.AlertEvent
	rooms    []model.Room
	logErr   error
	alertErr error
}

func (f *fakeRepo) InsertSensorLog(ctx context.Context, log *model.SensorLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeRepo) InsertAlertEvent(ctx context.Context, alert *model.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alertErr != nil {
		return f.alertErr
	}
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeRepo) UpsertRoom(ctx context.Context, room *model.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, *room)
	return nil
}

type fakeDispatcher struct {
	msgs []notification.Message
}

func (f *fakeDispatcher) Dispatch(msg notification.Message) bool {
	f.msgs = append(f.msgs, msg)
	return true
}

type published struct {
	event string
	data  any
}

type fakePublisher struct {
	events []published
}

func (f *fakePublisher) Publish(event string, data any) {
	f.events = append(f.events, published{event, data})
}

type fixture struct {
	coord *Coordinator
	rooms *roomstate.Store
	repo  *fakeRepo
	notes *fakeDispatcher
	pub   *fakePublisher
}

func newFixture(rule sensor.StatusRule, policy UnknownRoomPolicy) *fixture {
	rooms := roomstate.NewStore()
	for _, r := range model.DefaultRooms {
		rooms.Register(r.ID, r.Name, r.Location, true)
	}
	f := &fixture{rooms: rooms, repo: &fakeRepo{}, notes: &fakeDispatcher{}, pub: &fakePublisher{}}
	f.coord = NewCoordinator(sensor.NewClassifier(rule), rooms, f.repo, policy,
		WithClock(func() time.Time { return fixedNow }),
		WithDispatcher(f.notes),
		WithPublisher(f.pub),
	)
	return f
}

func decode(t *testing.T, body string) sensor.Reading {
	t.Helper()
	var r sensor.Reading
	require.NoError(t, json.Unmarshal([]byte(body), &r))
	return r
}

func TestIngest_FireInLivingRoom(t *testing.T) {
	f := newFixture(sensor.StatusRuleStrict, PolicyDrop)

	res, err := f.coord.Ingest(context.Background(), "http", decode(t, `{"id":"1","fire":true}`))
	require.NoError(t, err)
	require.True(t, res.Accepted)

	st, _ := f.rooms.Get("1")
	assert.Equal(t, sensor.StatusCritical, st.Status)
	assert.True(t, st.Fire)
	assert.True(t, st.IsActive)

	require.Len(t, f.repo.logs, 1)
	log := f.repo.logs[0]
	assert.Equal(t, "critical", log.EventType)
	assert.Equal(t, "critical", log.Status)
	assert.Equal(t, "FIRE DETECTED in Living Room", log.Message)
	assert.Equal(t, sensor.DefaultRSSI, log.RSSI)
	assert.Equal(t, fixedNow, log.Timestamp)

	require.Len(t, f.repo.alerts, 1)
	assert.Equal(t, model.AlertEvent{
		RoomID: "1", RoomName: "Living Room", AlertType: "fire", Severity: "critical", Value: 1,
		Timestamp: fixedNow, CreatedAt: fixedNow,
	}, f.repo.alerts[0])

	require.Len(t, f.notes.msgs, 1)
	assert.Equal(t, sensor.PriorityUrgent, f.notes.msgs[0].Priority)
	assert.Equal(t, "1", f.notes.msgs[0].RoomID)

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, EventSensorUpdate, f.pub.events[0].event)
	assert.Equal(t, EventRoomsUpdate, f.pub.events[1].event)
	assert.Len(t, f.pub.events[1].data, 5)
}

func TestIngest_ShallowFloodUnderBothRules(t *testing.T) {
	testCases := []struct {
		rule       sensor.StatusRule
		wantStatus sensor.Status
	}{
		{sensor.StatusRuleStrict, sensor.StatusCritical},
		{sensor.StatusRuleThreshold, sensor.StatusWarning},
	}
	for _, tc := range testCases {
		t.Run(string(tc.rule), func(t *testing.T) {
			f := newFixture(tc.rule, PolicyDrop)
			_, err := f.coord.Ingest(context.Background(), "http", decode(t, `{"id":"2","flood":true,"floodLevel":35}`))
			require.NoError(t, err)

			require.Len(t, f.repo.logs, 1)
			assert.Equal(t, "warning", f.repo.logs[0].EventType)
			assert.Equal(t, string(tc.wantStatus), f.repo.logs[0].Status)
			assert.Empty(t, f.repo.alerts, "below the flood alert level")
			assert.Empty(t, f.notes.msgs)
		})
	}
}

func TestIngest_UnknownRoomDropped(t *testing.T) {
	f := newFixture(sensor.StatusRuleStrict, PolicyDrop)

	res, err := f.coord.Ingest(context.Background(), "http", sensor.Reading{RoomID: "99", Fire: true})
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	_, ok := f.rooms.Get("99")
	assert.False(t, ok)
	assert.Empty(t, f.repo.logs)
	assert.Empty(t, f.repo.alerts)
	assert.Empty(t, f.notes.msgs)
	assert.Empty(t, f.pub.events)
}

func TestIngest_UnknownRoomProvisioned(t *testing.T) {
	f := newFixture(sensor.StatusRuleStrict, PolicyCreate)

	res, err := f.coord.Ingest(context.Background(), "mqtt", decode(t, `{"id":"99","floodLevel":12}`))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "Room 99", res.Room.Name)
	assert.Equal(t, "Unknown", res.Room.Location)

	require.Len(t, f.repo.rooms, 1)
	assert.Equal(t, "99", f.repo.rooms[0].ID)
	require.Len(t, f.repo.logs, 1)
	assert.Equal(t, "alert", f.repo.logs[0].EventType)
}

func TestIngest_PersistenceFailuresAreSwallowed(t *testing.T) {
	f := newFixture(sensor.StatusRuleStrict, PolicyDrop)
	f.repo.logErr = errors.New("disk full")
	f.repo.alertErr = errors.New("disk full")

	res, err := f.coord.Ingest(context.Background(), "http", sensor.Reading{RoomID: "4", Flood: true, FloodLevel: 75, Quake: true, QuakeIntensity: 6.5})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	require.Len(t, res.Alerts, 2)

	assert.Len(t, f.notes.msgs, 2, "notifications go out even when inserts fail")
	assert.Len(t, f.pub.events, 2)
	st, _ := f.rooms.Get("4")
	assert.Equal(t, sensor.StatusCritical, st.Status)
}

type countingCache struct {
	n int
}

func (c *countingCache) Invalidate() { c.n++ }

func TestIngest_InvalidatesCacheOnAcceptedReadings(t *testing.T) {
	cache := &countingCache{}
	rooms := roomstate.NewStore()
	rooms.Register("1", "Living Room", "Ground Floor", true)
	coord := NewCoordinator(sensor.NewClassifier(sensor.StatusRuleStrict), rooms, &fakeRepo{}, PolicyDrop, WithInvalidator(cache))

	_, err := coord.Ingest(context.Background(), "mqtt", decode(t, `{"id":"1"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.n)

	_, err = coord.Ingest(context.Background(), "mqtt", decode(t, `{"id":"99"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.n, "dropped readings write nothing")

	_, err = coord.Ingest(context.Background(), "mqtt", sensor.Reading{})
	assert.ErrorIs(t, err, sensor.ErrMissingRoomID)
	assert.Equal(t, 1, cache.n)
}

func TestIngest_MissingRoomID(t *testing.T) {
	f := newFixture(sensor.StatusRuleStrict, PolicyDrop)
	_, err := f.coord.Ingest(context.Background(), "http", sensor.Reading{Fire: true})
	assert.ErrorIs(t, err, sensor.ErrMissingRoomID)
}

func TestIngest_DeviceTimestampKept(t *testing.T) {
	f := newFixture(sensor.StatusRuleStrict, PolicyDrop)
	_, err := f.coord.Ingest(context.Background(), "http", decode(t, `{"id":"3","timestamp":1700000000000,"rssi":-70}`))
	require.NoError(t, err)

	require.Len(t, f.repo.logs, 1)
	assert.Equal(t, time.UnixMilli(1700000000000), f.repo.logs[0].Timestamp)
	assert.Equal(t, -70, f.repo.logs[0].RSSI)
	update := f.pub.events[0].data.(SensorUpdate)
	assert.Equal(t, int64(1700000000000), update.Timestamp)
	assert.Equal(t, "heartbeat", f.repo.logs[0].EventType)
}

func TestParseUnknownRoomPolicy(t *testing.T) {
	p, err := ParseUnknownRoomPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyDrop, p)

	p, err = ParseUnknownRoomPolicy("create")
	require.NoError(t, err)
	assert.Equal(t, PolicyCreate, p)

	_, err = ParseUnknownRoomPolicy("ignore")
	assert.Error(t, err)
}
