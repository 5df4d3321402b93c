package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
)

func TestReconcileLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "recon_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if err := models.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Mutations read the acting user from context for activity attribution.
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Test Biz",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	account, err := models.CreateAccount(ctx, &models.NewAccount{Name: "Operating Checking"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	// Ledger entries: one 12,000-cent rent payment split across two checks,
	// plus two income entries for the deposit scenario later.
	rent1 := mustCreateEntry(t, ctx, account.ID, "2026-03-05", models.EntryTypeExpense, -7000)
	rent2 := mustCreateEntry(t, ctx, account.ID, "2026-03-05", models.EntryTypeExpense, -5000)
	sale1 := mustCreateEntry(t, ctx, account.ID, "2026-03-10", models.EntryTypeIncome, 5000)
	sale2 := mustCreateEntry(t, ctx, account.ID, "2026-03-10", models.EntryTypeIncome, 3000)

	rentTxn := mustCreateBankTxn(t, ctx, account.ID, "2026-03-06", -12000, "ACME PROPERTY MGMT")
	depositTxn := mustCreateBankTxn(t, ctx, account.ID, "2026-03-11", 8000, "DEPOSIT")

	// 1) Balanced N:M group: one bank debit vs two entries.
	group, err := models.CreateMatchGroup(ctx, &models.NewMatchGroup{
		BankTransactionIds: []int{rentTxn.ID},
		EntryIds:           []int{rent1.ID, rent2.ID},
		Note:               "March rent",
	})
	if err != nil {
		t.Fatalf("CreateMatchGroup: %v", err)
	}
	if group.Direction != models.DirectionOutflow {
		t.Fatalf("expected OUTFLOW group; got %s", group.Direction)
	}
	if group.TotalCents != 12000 {
		t.Fatalf("expected group total 12000; got %d", group.TotalCents)
	}

	// 2) An unbalanced set is rejected with a VALIDATION error.
	_, err = models.CreateMatchGroup(ctx, &models.NewMatchGroup{
		BankTransactionIds: []int{depositTxn.ID},
		EntryIds:           []int{sale1.ID},
	})
	assertAppErrorCode(t, err, models.CodeValidation, "unbalanced group")

	// 3) A member already claimed by an active group is rejected with CONFLICT,
	// even when the new set balances.
	_, err = models.CreateMatchGroup(ctx, &models.NewMatchGroup{
		BankTransactionIds: []int{rentTxn.ID},
		EntryIds:           []int{rent1.ID, rent2.ID},
	})
	assertAppErrorCode(t, err, models.CodeConflict, "claimed member reuse")

	// 4) Void releases the claims; a second void conflicts.
	voided, err := models.VoidMatchGroup(ctx, group.ID, "wrong checks")
	if err != nil {
		t.Fatalf("VoidMatchGroup: %v", err)
	}
	if voided.Status != models.MatchGroupStatusVoided || voided.VoidedAt == nil {
		t.Fatalf("expected voided group; got %+v", voided)
	}
	_, err = models.VoidMatchGroup(ctx, group.ID, "")
	assertAppErrorCode(t, err, models.CodeConflict, "double void")

	// Claims are released: the rent members can be regrouped.
	regroup, err := models.CreateMatchGroup(ctx, &models.NewMatchGroup{
		BankTransactionIds: []int{rentTxn.ID},
		EntryIds:           []int{rent1.ID, rent2.ID},
	})
	if err != nil {
		t.Fatalf("CreateMatchGroup after void: %v", err)
	}

	// 5) Legacy 1:1 matches against the 8000 deposit: the 5000 entry covers it
	// partially, then the 3000 entry exhausts it.
	m1, err := models.CreateMatch(ctx, &models.NewBankMatch{
		BankTransactionId: depositTxn.ID,
		EntryId:           sale1.ID,
	})
	if err != nil {
		t.Fatalf("CreateMatch(sale1): %v", err)
	}
	if m1.MatchType != models.MatchTypeFull || m1.MatchedCents != 5000 {
		t.Fatalf("expected FULL match of 5000; got %s %d", m1.MatchType, m1.MatchedCents)
	}
	m2, err := models.CreateMatch(ctx, &models.NewBankMatch{
		BankTransactionId: depositTxn.ID,
		EntryId:           sale2.ID,
	})
	if err != nil {
		t.Fatalf("CreateMatch(sale2): %v", err)
	}
	if m2.MatchedCents != 3000 {
		t.Fatalf("expected remaining 3000 matched; got %d", m2.MatchedCents)
	}
	extra := mustCreateEntry(t, ctx, account.ID, "2026-03-12", models.EntryTypeIncome, 100)
	_, err = models.CreateMatch(ctx, &models.NewBankMatch{
		BankTransactionId: depositTxn.ID,
		EntryId:           extra.ID,
	})
	assertAppErrorCode(t, err, models.CodeConflict, "exhausted bank transaction")

	// 6) Unmatch voids both matches at once.
	count, err := models.UnmatchBankTransaction(ctx, depositTxn.ID)
	if err != nil {
		t.Fatalf("UnmatchBankTransaction: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 voided matches; got %d", count)
	}

	// 7) Create-entry-from-bank with auto match writes the mirror entry and
	// the match in one transaction.
	orphanTxn := mustCreateBankTxn(t, ctx, account.ID, "2026-03-20", -2500, "STRIPE FEE")
	mirror, matchId, err := models.CreateEntryFromBankTxn(ctx, orphanTxn.ID, &models.NewEntryFromBankTxn{
		AutoMatch: true,
		Memo:      "card fees",
	})
	if err != nil {
		t.Fatalf("CreateEntryFromBankTxn: %v", err)
	}
	if mirror.EntryType != models.EntryTypeExpense || mirror.AmountCents != -2500 {
		t.Fatalf("expected EXPENSE -2500 mirror entry; got %s %d", mirror.EntryType, mirror.AmountCents)
	}
	if matchId == nil {
		t.Fatal("expected auto match id")
	}

	// 8) Close the period through March: voiding the regroup now trips the
	// guard, because its entries fall on/before the lock date.
	if _, err := models.UpdateClosedThrough(ctx, &models.NewClosedThrough{
		ClosedThroughDate: models.NewDateOnly(mustDateT(t, "2026-03-31")),
		Reason:            "Q1 close",
	}); err != nil {
		t.Fatalf("UpdateClosedThrough: %v", err)
	}
	_, err = models.VoidMatchGroup(ctx, regroup.ID, "")
	assertAppErrorCode(t, err, models.CodeClosedPeriod, "void in closed period")
	_, err = models.CreateEntry(ctx, &models.NewEntry{
		AccountId:   account.ID,
		EntryDate:   models.NewDateOnly(mustDateT(t, "2026-03-15")),
		EntryType:   models.EntryTypeIncome,
		AmountCents: 100,
	})
	assertAppErrorCode(t, err, models.CodeClosedPeriod, "entry in closed period")

	// April is still open.
	april := mustCreateEntry(t, ctx, account.ID, "2026-04-02", models.EntryTypeIncome, 900)
	aprilTxn := mustCreateBankTxn(t, ctx, account.ID, "2026-04-03", 900, "DEPOSIT")
	if _, err := models.CreateMatchGroup(ctx, &models.NewMatchGroup{
		BankTransactionIds: []int{aprilTxn.ID},
		EntryIds:           []int{april.ID},
	}); err != nil {
		t.Fatalf("CreateMatchGroup in open period: %v", err)
	}

	// 9) Every mutation above left an activity record.
	activities, err := models.GetActivities(ctx, nil, nil, 100)
	if err != nil {
		t.Fatalf("GetActivities: %v", err)
	}
	seen := map[models.EventType]bool{}
	for _, a := range activities {
		seen[a.EventType] = true
	}
	for _, want := range []models.EventType{
		models.EventMatchGroupCreated,
		models.EventMatchGroupVoided,
		models.EventMatchCreated,
		models.EventMatchVoided,
		models.EventEntryCreatedFromBank,
		models.EventClosedThroughUpdated,
	} {
		if !seen[want] {
			t.Errorf("expected %s in activity log", want)
		}
	}

	// 10) Batch create reports per-item outcomes without failing the batch.
	mayEntry := mustCreateEntry(t, ctx, account.ID, "2026-05-02", models.EntryTypeExpense, -400)
	mayTxn := mustCreateBankTxn(t, ctx, account.ID, "2026-05-03", -400, "FEE")
	results, summary, err := models.CreateMatchGroupsBatch(ctx, []*models.NewMatchGroup{
		{ClientId: "a", BankTransactionIds: []int{mayTxn.ID}, EntryIds: []int{mayEntry.ID}},
		{ClientId: "b", BankTransactionIds: []int{mayTxn.ID}, EntryIds: []int{mayEntry.ID}},
	})
	if err != nil {
		t.Fatalf("CreateMatchGroupsBatch: %v", err)
	}
	if summary.Ok != 1 || summary.Failed != 1 || summary.Total != 2 {
		t.Fatalf("unexpected batch summary: %+v", summary)
	}
	if !results[0].Ok || results[0].ClientId != "a" {
		t.Fatalf("expected first item to succeed: %+v", results[0])
	}
	if results[1].Ok || results[1].Error == nil || results[1].Error.Code != models.CodeConflict {
		t.Fatalf("expected second item to conflict: %+v", results[1])
	}

	// 11) A batch touching the closed period fails whole before any item
	// runs: the valid June item must not produce a group.
	juneEntry := mustCreateEntry(t, ctx, account.ID, "2026-06-02", models.EntryTypeExpense, -600)
	juneTxn := mustCreateBankTxn(t, ctx, account.ID, "2026-06-03", -600, "JUNE FEE")
	before, err := models.ListMatchGroups(ctx, &models.MatchGroupFilter{Limit: 100})
	if err != nil {
		t.Fatalf("ListMatchGroups: %v", err)
	}
	_, _, err = models.CreateMatchGroupsBatch(ctx, []*models.NewMatchGroup{
		{ClientId: "june", BankTransactionIds: []int{juneTxn.ID}, EntryIds: []int{juneEntry.ID}},
		{ClientId: "march", BankTransactionIds: []int{rentTxn.ID}, EntryIds: []int{rent1.ID, rent2.ID}},
	})
	assertAppErrorCode(t, err, models.CodeClosedPeriod, "batch touching closed period")
	after, err := models.ListMatchGroups(ctx, &models.MatchGroupFilter{Limit: 100})
	if err != nil {
		t.Fatalf("ListMatchGroups: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected no groups from rejected batch; had %d, now %d", len(before), len(after))
	}

	// The legacy match batch runs the same pre-flight.
	_, _, err = models.CreateMatchesBatch(ctx, []*models.NewBankMatch{
		{ClientId: "june", BankTransactionId: juneTxn.ID, EntryId: juneEntry.ID},
		{ClientId: "march", BankTransactionId: depositTxn.ID, EntryId: sale1.ID},
	})
	assertAppErrorCode(t, err, models.CodeClosedPeriod, "match batch touching closed period")
	juneMatches, err := models.GetBankMatches(ctx, juneTxn.ID, false)
	if err != nil {
		t.Fatalf("GetBankMatches: %v", err)
	}
	if len(juneMatches) != 0 {
		t.Fatalf("expected no matches from rejected batch; got %d", len(juneMatches))
	}

	// 12) Concurrent matches against one bank transaction never overshoot
	// its amount: the account lock is held through commit, so the loser
	// recomputes the remaining amount against the winner's committed row.
	raceTxn := mustCreateBankTxn(t, ctx, account.ID, "2026-06-10", -9000, "VENDOR WIRE")
	raceA := mustCreateEntry(t, ctx, account.ID, "2026-06-10", models.EntryTypeExpense, -6000)
	raceB := mustCreateEntry(t, ctx, account.ID, "2026-06-10", models.EntryTypeExpense, -6000)
	var wg sync.WaitGroup
	for _, entryId := range []int{raceA.ID, raceB.ID} {
		wg.Add(1)
		go func(entryId int) {
			defer wg.Done()
			_, _ = models.CreateMatch(ctx, &models.NewBankMatch{
				BankTransactionId: raceTxn.ID,
				EntryId:           entryId,
			})
		}(entryId)
	}
	wg.Wait()
	matches, err := models.GetBankMatches(ctx, raceTxn.ID, false)
	if err != nil {
		t.Fatalf("GetBankMatches: %v", err)
	}
	var matchedTotal models.Cents
	for _, m := range matches {
		matchedTotal += m.MatchedCents.Abs()
	}
	if matchedTotal != 9000 {
		t.Fatalf("expected matched total 9000 after concurrent matches; got %d", matchedTotal)
	}
}

func mustCreateEntry(t *testing.T, ctx context.Context, accountId int, date string, entryType models.EntryType, cents models.Cents) *models.Entry {
	t.Helper()
	entry, err := models.CreateEntry(ctx, &models.NewEntry{
		AccountId:   accountId,
		EntryDate:   models.NewDateOnly(mustDateT(t, date)),
		EntryType:   entryType,
		AmountCents: cents,
	})
	if err != nil {
		t.Fatalf("CreateEntry(%s %d): %v", date, cents, err)
	}
	return entry
}

func mustCreateBankTxn(t *testing.T, ctx context.Context, accountId int, date string, cents models.Cents, description string) *models.BankTransaction {
	t.Helper()
	txn, err := models.CreateBankTransaction(ctx, &models.NewBankTransaction{
		AccountId:   accountId,
		PostedDate:  models.NewDateOnly(mustDateT(t, date)),
		AmountCents: cents,
		Description: description,
	})
	if err != nil {
		t.Fatalf("CreateBankTransaction(%s %d): %v", date, cents, err)
	}
	return txn
}

func mustDateT(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func assertAppErrorCode(t *testing.T, err error, code string, scenario string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error with code %s, got nil", scenario, code)
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("%s: expected AppError, got %T: %v", scenario, err, err)
	}
	if appErr.Code != code {
		t.Fatalf("%s: expected code %s, got %s (%s)", scenario, code, appErr.Code, appErr.Message)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("recon-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("recon-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=recon_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
