package test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pathline/lis/store"
	"github.com/pathline/lis/test"
)

const (
	mongoTestHost = "mongodb://127.0.0.1:27017/?directConnection=true"
	mongoTimeout  = time.Second * 5
)

var (
	database *mongo.Database
)

// SetupDatabase connects to the test deployment (LIS_TEST_MONGO_HOST) and skips the
// calling suite when it is unreachable. Transactions need a replica set.
func SetupDatabase() {
	host := os.Getenv("LIS_TEST_MONGO_HOST")
	if host == "" {
		host = mongoTestHost
	}

	client, err := store.NewClient(host)
	Expect(err).ToNot(HaveOccurred())

	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		ginkgo.Skip(fmt.Sprintf("mongo is not available at %s: %v", host, err))
	}

	databaseName := fmt.Sprintf("lis_test_%s_%d", test.Faker.Lorem().Word(), ginkgo.GinkgoParallelProcess())
	database = client.Database(databaseName)
}

func TeardownDatabase() {
	if database == nil {
		return
	}
	err := database.Drop(context.Background())
	Expect(err).ToNot(HaveOccurred())

	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	Expect(database.Client().Disconnect(ctx)).ToNot(HaveOccurred())
	database = nil
}

func GetTestDatabase() *mongo.Database {
	Expect(database).ToNot(BeNil())
	return database
}
