// cmd/seeder fills a development database with random user bags.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	repoPkg "github.com/reybrally/fulfillment-service/internal/adapters/repo"
	"github.com/reybrally/fulfillment-service/internal/config"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

var (
	cities   = []string{"Kathmandu", "Lalitpur", "Pokhara", "Biratnagar", "Butwal", "Dharan"}
	statuses = []string{"success", "success", "success", "pending", "failed"}
	products = []string{"Tea Set", "Pashmina Shawl", "Singing Bowl", "Thangka Print", "Yak Wool Socks"}

	users = flag.Int("users", 50, "number of distinct user ids")
)

func main() {
	n := flag.Int("bags", 200, "number of user bags to create")
	days := flag.Int("days", 60, "spread creation times over the last N days")
	flag.Parse()

	cfg := config.Load()
	logging.InitLogger(cfg.App.LogLevel)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		logging.LogError("db connect", err, logrus.Fields{})
		os.Exit(1)
	}
	defer pool.Close()

	repo := repoPkg.NewUserBagRepo(pool)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	var payments int
	for i := 1; i <= *n; i++ {
		bag := randomBag(rng, i, now.Add(-time.Duration(rng.Int63n(int64(*days)*24))*time.Hour))
		if _, err := repo.UpsertUserBag(ctx, bag); err != nil {
			logging.LogError("seed user bag", err, logrus.Fields{"user_bag_id": bag.ID})
			os.Exit(1)
		}
		payments += len(bag.Payments)
	}
	logging.LogInfo("seed complete", logrus.Fields{"user_bags": *n, "payments": payments})
}

func randomBag(rng *rand.Rand, i int, created time.Time) domain.UserBag {
	bag := domain.UserBag{
		ID:        uuid.NewString(),
		UserID:    fmt.Sprintf("user-%d", 1000+rng.Intn(max(*users, 1))),
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for j := 0; j < 1+rng.Intn(3); j++ {
		bag.Payments = append(bag.Payments, randomPayment(rng, i, j, created.Add(time.Duration(j)*time.Minute)))
	}
	return bag
}

func randomPayment(rng *rand.Rand, i, j int, at time.Time) domain.Payment {
	qty := 1 + rng.Intn(3)
	price := decimal.New(int64(500+rng.Intn(9500)), -2)
	subtotal := price.Mul(decimal.NewFromInt(int64(qty)))
	shipping := decimal.NewFromInt(int64(rng.Intn(3) * 5))
	city := cities[rng.Intn(len(cities))]

	return domain.Payment{
		MerchantTxnID:      fmt.Sprintf("TXN-%06d-%d", i, j),
		GatewayReferenceNo: fmt.Sprintf("GW-%06d-%d", i, j),
		Status:             statuses[rng.Intn(len(statuses))],
		Amount:             subtotal.Add(shipping),
		CreatedAt:          at,
		OrderData: domain.OrderData{
			ReceiverDetails: domain.ReceiverDetails{
				FullName:    fmt.Sprintf("Customer %d", i),
				Email:       fmt.Sprintf("customer%d@example.com", i),
				Phone:       fmt.Sprintf("98%08d", rng.Intn(100000000)),
				Address:     fmt.Sprintf("Ward %d", 1+rng.Intn(30)),
				City:        city,
				PostalCode:  "44600",
				CountryCode: "NP",
			},
			Products: []domain.OrderedProduct{{
				ProductID: fmt.Sprintf("P-%03d", rng.Intn(500)),
				Name:      products[rng.Intn(len(products))],
				Quantity:  qty,
				Price:     price,
				Package:   &domain.Package{Weight: 0.5 + float64(rng.Intn(40))/10, Length: 30, Width: 20, Height: 10},
			}},
			OrderSummary: domain.OrderSummary{
				Subtotal: subtotal,
				Shipping: shipping,
				Total:    subtotal.Add(shipping),
				Currency: "NPR",
			},
		},
	}
}
