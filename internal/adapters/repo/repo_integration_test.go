package repo_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	r "github.com/reybrally/fulfillment-service/internal/adapters/repo"
	svc "github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

/* ---------- setup helpers ---------- */

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration")
	}
	ctx := context.Background()

	// TEST_PG_DSN points at an existing Postgres.
	if dsn := os.Getenv("TEST_PG_DSN"); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			t.Fatalf("pgxpool.New: %v", err)
		}
		t.Cleanup(func() { pool.Close() })
		applyMigrations(t, pool)
		return pool
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)
	pgC, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("fulfillment"),
		postgres.WithUsername("user"),
		postgres.WithPassword("pass"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable&pool_max_conns=5")
	if err != nil {
		t.Fatalf("conn string: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	applyMigrations(t, pool)
	return pool
}

func applyMigrations(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	b, err := os.ReadFile(filepath.Join("testdata", "001_init.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(b)
	up := extractGooseUp(sql)
	if strings.TrimSpace(up) == "" {
		up = sql
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS payments; DROP TABLE IF EXISTS user_bags;"); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if _, err := pool.Exec(ctx, up); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
}

func extractGooseUp(all string) string {
	const upTag = "-- +goose Up"
	const downTag = "-- +goose Down"
	upIdx := strings.Index(all, upTag)
	if upIdx == -1 {
		return ""
	}
	rest := all[upIdx+len(upTag):]
	downIdx := strings.Index(rest, downTag)
	if downIdx == -1 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:downIdx])
}

/* ---------- fixtures ---------- */

func fixtureBag(t *testing.T) domain.UserBag {
	t.Helper()
	created := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)
	return domain.UserBag{
		ID:        "bag-001",
		UserID:    "user-42",
		CreatedAt: created,
		Payments: []domain.Payment{
			{
				MerchantTxnID:      "TXN1",
				GatewayReferenceNo: "G1",
				Status:             "Success",
				Amount:             decimal.RequireFromString("1817.50"),
				CreatedAt:          created,
				OrderData: domain.OrderData{
					ReceiverDetails: domain.ReceiverDetails{FullName: "Sita Sharma", City: "Pokhara", CountryCode: "NP"},
					Products:        []domain.OrderedProduct{{Name: "Pashmina", Quantity: 2}},
				},
			},
			{MerchantTxnID: "TXN2", GatewayReferenceNo: "G2", Status: "Fail", Amount: decimal.NewFromInt(40), CreatedAt: created},
		},
	}
}

func dhlRecord(txn, tracking string) domain.TrackingRecord {
	return domain.NewDHLRecord(domain.DHLShipment{
		MerchantTxnID: txn, TrackingNumber: tracking, Status: "Created", Success: true,
		CreatedAt: time.Now().UTC(),
	})
}

/* ---------- tests ---------- */

func TestRepo_Upsert_then_Get(t *testing.T) {
	ctx := context.Background()
	repo := r.NewUserBagRepo(setupPool(t))
	want := fixtureBag(t)

	saved, err := repo.UpsertUserBag(ctx, want)
	if err != nil {
		t.Fatalf("UpsertUserBag: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("version = %d, want 1", saved.Version)
	}

	got, err := repo.GetUserBag(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetUserBag: %v", err)
	}
	if len(got.Payments) != 2 {
		t.Fatalf("payments len = %d, want 2", len(got.Payments))
	}
	if !got.Payments[0].Amount.Equal(decimal.RequireFromString("1817.5")) {
		t.Fatalf("amount = %s", got.Payments[0].Amount)
	}
	if got.Payments[0].OrderData.ReceiverDetails.City != "Pokhara" {
		t.Fatalf("order data lost: %+v", got.Payments[0].OrderData)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, want.CreatedAt)
	}

	again, err := repo.UpsertUserBag(ctx, want)
	if err != nil {
		t.Fatalf("idempotent upsert failed: %v", err)
	}
	if again.Version != 2 {
		t.Fatalf("version after second upsert = %d, want 2", again.Version)
	}
}

func TestRepo_Get_NotFound(t *testing.T) {
	repo := r.NewUserBagRepo(setupPool(t))
	_, err := repo.GetUserBag(context.Background(), "no-such-id")
	if !errors.Is(err, svc.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRepo_AppendTracking(t *testing.T) {
	ctx := context.Background()
	repo := r.NewUserBagRepo(setupPool(t))
	bag, err := repo.UpsertUserBag(ctx, fixtureBag(t))
	if err != nil {
		t.Fatalf("UpsertUserBag: %v", err)
	}

	updated, err := repo.AppendTracking(ctx, bag.ID, bag.Version, dhlRecord("TXN1", "1234567890"))
	if err != nil {
		t.Fatalf("AppendTracking: %v", err)
	}
	if updated.Version != bag.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, bag.Version+1)
	}
	if len(updated.TrackingInfo) != 1 {
		t.Fatalf("tracking len = %d, want 1", len(updated.TrackingInfo))
	}
	p, _ := updated.Payment("TXN2")
	if domain.DeriveStatus(p, updated) != domain.StatusFailed {
		t.Fatalf("TXN2 should stay failed")
	}
	p, _ = updated.Payment("TXN1")
	if domain.DeriveStatus(p, updated) != domain.StatusShipped {
		t.Fatalf("TXN1 should be shipped")
	}

	_, err = repo.AppendTracking(ctx, bag.ID, bag.Version, dhlRecord("TXN1", "x"))
	if !errors.Is(err, svc.ErrVersionConflict) {
		t.Fatalf("stale append err = %v, want ErrVersionConflict", err)
	}
	_, err = repo.AppendTracking(ctx, "missing", 1, dhlRecord("TXN1", "x"))
	if !errors.Is(err, svc.ErrNotFound) {
		t.Fatalf("missing bag err = %v, want ErrNotFound", err)
	}
}

func TestRepo_AppendTracking_LegacySingleObject(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t)
	repo := r.NewUserBagRepo(pool)
	if _, err := pool.Exec(ctx,
		`INSERT INTO user_bags (id, tracking_info, version) VALUES ('legacy', '{"merchantTxnId":"OLD","trackingNumber":"1","success":true}', 5)`,
	); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	got, err := repo.AppendTracking(ctx, "legacy", 5, dhlRecord("NEW", "2"))
	if err != nil {
		t.Fatalf("AppendTracking: %v", err)
	}
	if len(got.TrackingInfo) != 2 {
		t.Fatalf("tracking len = %d, want 2", len(got.TrackingInfo))
	}
	if got.TrackingInfo[0].DHL.MerchantTxnID != "OLD" || got.TrackingInfo[1].DHL.MerchantTxnID != "NEW" {
		t.Fatalf("unexpected order: %+v", got.TrackingInfo)
	}
}

func TestRepo_AppendTracking_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	repo := r.NewUserBagRepo(setupPool(t))
	bag, err := repo.UpsertUserBag(ctx, fixtureBag(t))
	if err != nil {
		t.Fatalf("UpsertUserBag: %v", err)
	}

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AppendTracking(ctx, bag.ID, bag.Version, dhlRecord("TXN1", "c"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, svc.ErrVersionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || conflicts != writers-1 {
		t.Fatalf("ok=%d conflicts=%d", ok, conflicts)
	}
}

func TestRepo_ListUserBags(t *testing.T) {
	ctx := context.Background()
	repo := r.NewUserBagRepo(setupPool(t))

	b1 := fixtureBag(t)
	b2 := fixtureBag(t)
	b2.ID = "bag-002"
	b2.UserID = "another"
	b2.CreatedAt = b1.CreatedAt.Add(48 * time.Hour)
	for _, b := range []domain.UserBag{b1, b2} {
		if _, err := repo.UpsertUserBag(ctx, b); err != nil {
			t.Fatalf("insert %s: %v", b.ID, err)
		}
	}

	all, err := repo.ListUserBags(ctx, svc.ListFilter{})
	if err != nil {
		t.Fatalf("ListUserBags: %v", err)
	}
	if len(all) != 2 || all[0].ID != "bag-001" || len(all[1].Payments) != 2 {
		t.Fatalf("unexpected list: %+v", all)
	}

	to := b1.CreatedAt.Add(time.Hour)
	early, err := repo.ListUserBags(ctx, svc.ListFilter{CreatedTo: &to})
	if err != nil {
		t.Fatalf("ListUserBags to: %v", err)
	}
	if len(early) != 1 || early[0].ID != "bag-001" {
		t.Fatalf("created_to filter: %+v", early)
	}

	byUser, err := repo.ListUserBags(ctx, svc.ListFilter{UserID: "another"})
	if err != nil {
		t.Fatalf("ListUserBags user: %v", err)
	}
	if len(byUser) != 1 || byUser[0].ID != "bag-002" {
		t.Fatalf("user filter: %+v", byUser)
	}
}

func TestRepo_ListUserBags_SkipsUnreadableTracking(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t)
	repo := r.NewUserBagRepo(pool)
	if _, err := repo.UpsertUserBag(ctx, fixtureBag(t)); err != nil {
		t.Fatalf("UpsertUserBag: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO user_bags (id, user_id, tracking_info) VALUES ('bag-bad', 'user-42', '"oops"')`); err != nil {
		t.Fatalf("insert bad row: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO user_bags (id, user_id, tracking_info) VALUES ('bag-legacy', 'user-42',
		'[{"type":"ncm_order","ncmOrderId":9,"gatewayReferenceNo":"G9","timestamp":1714550400000},{"merchantTxnId":"T","success":"true","createdAt":"2024-05-01 10:00:00"}]')`); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	bags, err := repo.ListUserBags(ctx, svc.ListFilter{UserID: "user-42"})
	if err != nil {
		t.Fatalf("ListUserBags: %v", err)
	}
	ids := map[string]domain.UserBag{}
	for _, b := range bags {
		ids[b.ID] = b
	}
	if _, ok := ids["bag-bad"]; ok || len(ids) != 2 {
		t.Fatalf("expected bag-001 and bag-legacy only, got %v", bags)
	}
	if legacy := ids["bag-legacy"]; len(legacy.TrackingInfo) != 2 || !legacy.TrackingInfo[0].Succeeded() || !legacy.TrackingInfo[1].Succeeded() {
		t.Fatalf("legacy tracking not decoded: %+v", legacy.TrackingInfo)
	}
}

func TestRepo_InvalidPayment(t *testing.T) {
	ctx := context.Background()
	repo := r.NewUserBagRepo(setupPool(t))
	b := fixtureBag(t)
	b.Payments[1].MerchantTxnID = ""

	_, err := repo.UpsertUserBag(ctx, b)
	if !errors.Is(err, svc.ErrInvalidData) {
		t.Fatalf("err = %v, want ErrInvalidData", err)
	}
	if _, err := repo.GetUserBag(ctx, b.ID); !errors.Is(err, svc.ErrNotFound) {
		t.Fatalf("transaction should have rolled back, got %v", err)
	}
}
