package bot

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

var botNow = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Component: log.ComponentBot})
}

func newLedger(t *testing.T) *services.LedgerService {
	t.Helper()
	store, err := storage.Open(storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "bot.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ledger := services.NewLedgerService(store, nil).WithClock(func() time.Time { return botNow })
	_, err = ledger.Seed(context.Background(), services.DefaultTaxonomy)
	require.NoError(t, err)
	return ledger
}

type chat struct {
	t    *testing.T
	conv *Conversation
	id   int64
}

func (c chat) say(text string) Reply {
	c.t.Helper()
	return c.conv.Handle(context.Background(), Message{ChatID: c.id, UserID: c.id, Username: "alice", Text: text})
}

func TestStartRegistersUser(t *testing.T) {
	ledger := newLedger(t)
	c := chat{t, NewConversation(ledger, quietLogger()), 42}

	reply := c.say("/start")
	assert.Contains(t, reply.Text, "Welcome")
	assert.Equal(t, mainKeyboard(), reply.Keyboard)

	user, found, err := ledger.FindUser(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", user.Username)

	// A second /start does not duplicate the user.
	c.say("/start")
	res, err := ledger.List(context.Background(), "users", nil, core.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalRecords)
}

func TestRecordExpenseWithComment(t *testing.T) {
	ledger := newLedger(t)
	c := chat{t, NewConversation(ledger, quietLogger()), 7}

	reply := c.say(ButtonExpense)
	require.Equal(t, "Choose a subcategory:", reply.Text)
	require.Len(t, reply.Keyboard, 12)
	assert.Equal(t, []string{"Food"}, reply.Keyboard[0])
	assert.Equal(t, []string{ButtonBack}, reply.Keyboard[11])

	reply = c.say("Food")
	assert.Equal(t, "Enter the amount:", reply.Text)

	reply = c.say("abc")
	assert.Contains(t, reply.Text, "valid amount")

	reply = c.say("12,345  lunch with Bob")
	assert.Equal(t, "Saved expense Food: 12.35.", reply.Text)
	assert.Equal(t, mainKeyboard(), reply.Keyboard)

	summary, rows, err := ledger.Summary(context.Background(), core.PeriodAll, core.Filters{"user_telegram_id": int64(7)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, decimal.RequireFromString("12.35").Equal(summary.Expense))
	assert.Equal(t, "lunch with Bob", rows[0].Comment)
	assert.Equal(t, "Food", rows[0].SubcategoryName)
	assert.True(t, rows[0].Date.Equal(botNow))
}

func TestBackNavigation(t *testing.T) {
	c := chat{t, NewConversation(newLedger(t), quietLogger()), 1}

	c.say(ButtonIncome)
	c.say("Salary")

	reply := c.say(ButtonBack)
	assert.Equal(t, "Choose a subcategory:", reply.Text)
	assert.Equal(t, []string{"Salary"}, reply.Keyboard[0])

	reply = c.say("Nope")
	assert.Equal(t, "Subcategory not found.", reply.Text)

	reply = c.say(ButtonBack)
	assert.Equal(t, mainKeyboard(), reply.Keyboard)

	// Back at the menu an amount is not understood.
	reply = c.say("100")
	assert.Equal(t, "Choose an action:", reply.Text)
}

func TestCancelResetsDialogue(t *testing.T) {
	ledger := newLedger(t)
	c := chat{t, NewConversation(ledger, quietLogger()), 3}

	c.say(ButtonIncome)
	c.say("Salary")
	reply := c.say("/cancel")
	assert.Equal(t, mainKeyboard(), reply.Keyboard)

	c.say("100")
	_, rows, err := ledger.Summary(context.Background(), core.PeriodAll, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReport(t *testing.T) {
	ledger := newLedger(t)
	c := chat{t, NewConversation(ledger, quietLogger()), 5}
	other := chat{t, c.conv, 6}

	c.say(ButtonIncome)
	c.say("Salary")
	c.say("1000")
	c.say(ButtonExpense)
	c.say("Food")
	c.say("250.50 groceries")

	other.say(ButtonExpense)
	other.say("Travel")
	other.say("999")

	reply := c.say(ButtonReport)
	assert.Equal(t, periodKeyboard(), reply.Keyboard)

	reply = c.say("All time")
	assert.Contains(t, reply.Text, "Report: All time")
	assert.Contains(t, reply.Text, "Income: 1000.00")
	assert.Contains(t, reply.Text, "Expense: 250.50")
	assert.Contains(t, reply.Text, "Balance: 749.50")
	assert.Contains(t, reply.Text, "Transactions: 2")
	assert.Contains(t, reply.Text, "Expense/Food 250.50 (groceries)")
	assert.NotContains(t, reply.Text, "999")
	assert.Equal(t, mainKeyboard(), reply.Keyboard)

	c.say(ButtonReport)
	reply = c.say(ButtonBack)
	assert.Equal(t, "Choose an action:", reply.Text)
}

func TestReportEmptyPeriod(t *testing.T) {
	c := chat{t, NewConversation(newLedger(t), quietLogger()), 9}
	c.say(ButtonReport)
	reply := c.say("Month")
	assert.Equal(t, "Report: Month\nNo transactions in this period.", reply.Text)
}

func TestHelp(t *testing.T) {
	c := chat{t, NewConversation(newLedger(t), quietLogger()), 9}
	reply := c.say(ButtonHelp)
	assert.Equal(t, helpText, reply.Text)
}

type brokenLedger struct{ Ledger }

func (brokenLedger) CategoryByName(context.Context, string) (core.Category, error) {
	return core.Category{}, &core.StorageError{Op: "select", Err: errors.New("disk gone")}
}

func (brokenLedger) RegisterUser(context.Context, int64, string) (core.User, bool, error) {
	return core.User{}, false, errors.New("disk gone")
}

func TestLedgerFailures(t *testing.T) {
	c := chat{t, NewConversation(brokenLedger{}, quietLogger()), 1}

	reply := c.say("/start")
	assert.Contains(t, reply.Text, "Registration failed")

	reply = c.say(ButtonIncome)
	assert.Equal(t, "Something went wrong, please try again.", reply.Text)
	assert.Equal(t, mainKeyboard(), reply.Keyboard)
}

func TestSessionsAreDroppedAtMenu(t *testing.T) {
	ledger := newLedger(t)
	conv := NewConversation(ledger, quietLogger())
	c := chat{t, conv, 5}

	c.say("/start")
	assert.Equal(t, 0, conv.activeSessions())

	c.say(ButtonExpense)
	c.say("Food")
	assert.Equal(t, 1, conv.activeSessions())

	c.say("9")
	assert.Equal(t, 0, conv.activeSessions())

	c.say(ButtonReport)
	assert.Equal(t, 1, conv.activeSessions())
	c.say("/cancel")
	assert.Equal(t, 0, conv.activeSessions())
}

// blockingLedger parks Income lookups until unblock is closed.
type blockingLedger struct {
	Ledger
	entered chan struct{}
	unblock chan struct{}
}

func (l blockingLedger) CategoryByName(_ context.Context, name string) (core.Category, error) {
	if name == ButtonIncome {
		l.entered <- struct{}{}
		<-l.unblock
	}
	return core.Category{}, &core.NotFoundError{Entity: "Category", Key: name}
}

func TestChatsAreHandledConcurrently(t *testing.T) {
	ledger := blockingLedger{entered: make(chan struct{}), unblock: make(chan struct{})}
	conv := NewConversation(ledger, quietLogger())

	slow := make(chan Reply)
	go func() {
		slow <- conv.Handle(context.Background(), Message{ChatID: 1, UserID: 1, Text: ButtonIncome})
	}()
	<-ledger.entered

	fast := make(chan Reply)
	go func() {
		fast <- conv.Handle(context.Background(), Message{ChatID: 2, UserID: 2, Text: "/help"})
	}()
	select {
	case reply := <-fast:
		assert.Equal(t, helpText, reply.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("second chat waited for the first one")
	}

	close(ledger.unblock)
	reply := <-slow
	assert.Contains(t, reply.Text, "seed")
	assert.Equal(t, 0, conv.activeSessions())
}

func TestParseAmountLine(t *testing.T) {
	tests := []struct {
		in          string
		amount      string
		comment     string
		expectError bool
	}{
		{in: "10", amount: "10"},
		{in: "10,5 coffee", amount: "10.5", comment: "coffee"},
		{in: " 3.999   two words ", amount: "4", comment: "two words"},
		{in: "-5", expectError: true},
		{in: "0", expectError: true},
		{in: "ten", expectError: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			amount, comment, err := parseAmountLine(tt.in)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(amount), "amount %s", amount)
			assert.Equal(t, tt.comment, comment)
		})
	}
}

func TestReplyKeyboard(t *testing.T) {
	kb := replyKeyboard(periodKeyboard())
	assert.True(t, kb.ResizeKeyboard)
	require.Len(t, kb.Keyboard, 4)
	assert.Equal(t, "Month", kb.Keyboard[0][0].Text)
	assert.Equal(t, ButtonBack, kb.Keyboard[3][0].Text)
}
