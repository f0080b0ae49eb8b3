package testutil

import (
	"os"
	"testing"
	"time"

	"roombooking/pkg/auth"
	"roombooking/pkg/client"
	"roombooking/pkg/model"
)

const (
	DefaultServerURL          = "http://localhost:8080"
	DefaultHealthCheckTimeout = 30 * time.Second
)

// TestEnv points at a running bookings service. With STORAGE_BACKEND=memory
// the same process serves rooms; otherwise TEST_ROOMS_URL names the rooms
// service sharing its database.
type TestEnv struct {
	MongoURI     string
	DatabaseName string
	BookingsURL  string
	RoomsURL     string
	JWTSecret    string
	JWTIssuer    string
}

func NewTestEnv() *TestEnv {
	bookingsURL := getEnv("TEST_SERVER_URL", DefaultServerURL)
	return &TestEnv{
		MongoURI:     os.Getenv("TEST_MONGO_URI"),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		BookingsURL:  bookingsURL,
		RoomsURL:     getEnv("TEST_ROOMS_URL", bookingsURL),
		JWTSecret:    os.Getenv("TEST_JWT_SECRET"),
		JWTIssuer:    getEnv("TEST_JWT_ISSUER", "roombooking"),
	}
}

// Setup waits for the service and, when a Mongo URI is given, starts from an
// empty database.
func (e *TestEnv) Setup(t *testing.T) *MongoHelper {
	t.Helper()

	if e.JWTSecret == "" {
		t.Skip("TEST_JWT_SECRET not set")
	}

	var mongo *MongoHelper
	if e.MongoURI != "" {
		mongo = NewMongoHelper(t, e.MongoURI, e.DatabaseName)
		mongo.CleanDatabase(t)
	}

	if err := client.NewHttpClient(e.BookingsURL).WaitForHealthy(DefaultHealthCheckTimeout); err != nil {
		t.Fatalf("bookings service not healthy: %v", err)
	}
	return mongo
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	if mongo != nil {
		mongo.CleanDatabase(t)
		mongo.Close(t)
	}
}

func (e *TestEnv) Token(t *testing.T, actor model.Actor) string {
	t.Helper()

	token, err := auth.New(e.JWTSecret, e.JWTIssuer, time.Hour).GenerateToken(actor)
	if err != nil {
		t.Fatalf("failed to mint token for %s: %v", actor.ID, err)
	}
	return token
}

func (e *TestEnv) Bookings(t *testing.T, actor model.Actor) *client.BookingClient {
	t.Helper()
	return client.NewBookingClient(e.BookingsURL, e.Token(t, actor))
}

func (e *TestEnv) Rooms(t *testing.T, actor model.Actor) *client.RoomClient {
	t.Helper()
	return client.NewRoomClient(e.RoomsURL, e.Token(t, actor))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
