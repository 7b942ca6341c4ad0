package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	appmongo "github.com/evteam/tesla-charge-orchestrator/internal/adapter/storage/mongo"
)

// TestEnv holds test environment resources shared across a test binary run.
type TestEnv struct {
	DB              *appmongo.DB
	Redis           *redis.Client
	MongoContainer  testcontainers.Container
	RedisContainer  testcontainers.Container
	Logger          *zap.Logger
	ctx             context.Context
}

var testEnv *TestEnv

// SetupTestEnvironment initializes the test environment with containers,
// or connects to external services when MONGO_URI is set (CI environment).
func SetupTestEnvironment(t *testing.T) *TestEnv {
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	if os.Getenv("MONGO_URI") != "" {
		return setupExternalServices(t, ctx)
	}

	return setupContainers(t, ctx)
}

func setupExternalServices(t *testing.T, ctx context.Context) *TestEnv {
	logger, _ := zap.NewDevelopment()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping mongo: %v", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	testEnv = &TestEnv{
		DB:    &appmongo.DB{Client: client, Name: "evorch_test", Log: logger},
		Redis: redisClient,
		Logger: logger,
		ctx:    ctx,
	}
	return testEnv
}

func setupContainers(t *testing.T, ctx context.Context) *TestEnv {
	logger, _ := zap.NewDevelopment()

	mongoContainer, err := tcmongo.Run(ctx, "mongo:7",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Waiting for connections").WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}

	mongoURI, err := mongoContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get mongo connection string: %v", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	for i := 0; i < 30; i++ {
		if err := client.Ping(ctx, nil); err == nil {
			break
		}
		time.Sleep(time.Second)
	}

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	redisConnStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	opt, err := redis.ParseURL(redisConnStr)
	if err != nil {
		t.Fatalf("failed to parse redis connection string: %v", err)
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	testEnv = &TestEnv{
		DB:             &appmongo.DB{Client: client, Name: "evorch_test", Log: logger},
		Redis:          redisClient,
		MongoContainer: mongoContainer,
		RedisContainer: redisContainer,
		Logger:         logger,
		ctx:            ctx,
	}
	return testEnv
}

// TeardownTestEnvironment cleans up the test environment.
func TeardownTestEnvironment(t *testing.T) {
	if testEnv == nil {
		return
	}

	ctx := context.Background()

	if testEnv.DB != nil && testEnv.DB.Client != nil {
		testEnv.DB.Client.Disconnect(ctx)
	}
	if testEnv.Redis != nil {
		testEnv.Redis.Close()
	}
	if testEnv.MongoContainer != nil {
		if err := testEnv.MongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate mongo container: %v", err)
		}
	}
	if testEnv.RedisContainer != nil {
		if err := testEnv.RedisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	}

	testEnv = nil
}

// CleanDatabase drops every collection this system owns.
func CleanDatabase(t *testing.T, db *appmongo.DB) {
	collections := []string{"scout_state", "worker_cases", "special_charging_sessions", "schedule_fingerprints"}
	ctx := context.Background()
	for _, coll := range collections {
		if err := db.Client.Database(db.Name).Collection(coll).Drop(ctx); err != nil {
			t.Logf("failed to drop %s: %v", coll, err)
		}
	}
}

// FlushRedis clears all Redis keys.
func FlushRedis(t *testing.T, client *redis.Client) {
	ctx := context.Background()
	if err := client.FlushAll(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}
