// Package bot is the Telegram front end. Conversation holds the dialogue
// logic and knows nothing about Telegram; Runner feeds it updates.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Button labels.
const (
	ButtonIncome  = core.CategoryIncome
	ButtonExpense = core.CategoryExpense
	ButtonReport  = "Report"
	ButtonHelp    = "Help"
	ButtonBack    = "Back"
)

// periodButtons maps report keyboard labels to period tokens, in keyboard
// order.
var periodButtons = []struct {
	label, token string
}{
	{"Month", core.PeriodMonth},
	{"3 months", core.PeriodThreeMonths},
	{"Half-year", core.PeriodSixMonths},
	{"Year", core.PeriodYear},
	{"All time", core.PeriodAll},
}

// latestRows is how many transactions a report reply lists.
const latestRows = 5

const helpText = `Fintrack keeps track of your income and expenses.

Income / Expense: pick a subcategory, then send the amount.
You can add a comment after the amount, e.g. "12,50 lunch with Bob".
Report: pick a period to see your totals and latest transactions.
/cancel returns to the main menu at any time.`

// Ledger is what the conversation needs from the service layer.
type Ledger interface {
	RegisterUser(ctx context.Context, telegramID int64, username string) (core.User, bool, error)
	CategoryByName(ctx context.Context, name string) (core.Category, error)
	Subcategories(ctx context.Context, categoryID int64) ([]core.Subcategory, error)
	RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Summary(ctx context.Context, period string, f core.Filters) (core.ReportSummary, []core.TransactionView, error)
}

// Message is an incoming chat message.
type Message struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
}

// Reply is the answer to a Message. Keyboard rows replace the chat's reply
// keyboard; a nil Keyboard leaves it as is.
type Reply struct {
	Text     string
	Keyboard [][]string
}

type stage int

const (
	stageMenu stage = iota
	stageSubcategory
	stageAmount
	stageReport
)

type dialogue struct {
	stage         stage
	category      core.Category
	subcategories []core.Subcategory
	subcategory   core.Subcategory
}

// session serialises the messages of one chat. users counts the handlers
// holding or waiting for it and is guarded by Conversation.mu.
type session struct {
	mu    sync.Mutex
	users int
	dialogue
}

// Conversation tracks one dialogue per chat. Chats are handled
// concurrently; a chat back at the main menu keeps no session.
type Conversation struct {
	ledger Ledger
	logger *log.Logger

	mu       sync.Mutex
	sessions map[int64]*session
}

func NewConversation(ledger Ledger, logger *log.Logger) *Conversation {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Conversation{
		ledger:   ledger,
		logger:   logger.WithComponent(log.ComponentBot),
		sessions: make(map[int64]*session),
	}
}

// Handle advances the chat's dialogue by one message.
func (c *Conversation) Handle(ctx context.Context, msg Message) Reply {
	s := c.acquire(msg.ChatID)
	defer c.release(msg.ChatID, s)

	text := strings.TrimSpace(msg.Text)
	logger := c.logger.With(log.FieldChatID, msg.ChatID, log.FieldTelegramID, msg.UserID)
	logger.Debug("Message received", "stage", int(s.stage), "text", text)

	switch text {
	case "/start":
		return c.start(ctx, logger, s, msg)
	case "/cancel", "/menu":
		s.reset()
		return menu("Back to the main menu.")
	case "/help", ButtonHelp:
		s.reset()
		return Reply{Text: helpText, Keyboard: mainKeyboard()}
	}

	switch s.stage {
	case stageSubcategory:
		return c.chooseSubcategory(s, text)
	case stageAmount:
		return c.enterAmount(ctx, logger, s, msg, text)
	case stageReport:
		if token, ok := periodToken(text); ok {
			return c.report(ctx, logger, s, msg, text, token)
		}
		if text == ButtonBack {
			s.reset()
			return menu("Choose an action:")
		}
	}

	switch text {
	case ButtonIncome, ButtonExpense:
		return c.chooseCategory(ctx, logger, s, text)
	case ButtonReport:
		s.reset()
		s.stage = stageReport
		return Reply{Text: "Choose a period for the report:", Keyboard: periodKeyboard()}
	}

	s.reset()
	return menu("Choose an action:")
}

func (c *Conversation) acquire(chatID int64) *session {
	c.mu.Lock()
	s, ok := c.sessions[chatID]
	if !ok {
		s = &session{}
		c.sessions[chatID] = s
	}
	s.users++
	c.mu.Unlock()

	s.mu.Lock()
	return s
}

// release unlocks s and forgets it once no handler needs it and the chat
// is at the main menu.
func (c *Conversation) release(chatID int64, s *session) {
	s.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	s.users--
	if s.users == 0 && s.stage == stageMenu {
		delete(c.sessions, chatID)
	}
}

// activeSessions reports how many chats are mid-dialogue.
func (c *Conversation) activeSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Conversation) start(ctx context.Context, logger *log.Logger, s *session, msg Message) Reply {
	s.reset()
	if err := c.register(ctx, msg); err != nil {
		logger.Error("User registration failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		return menu("Registration failed, please try again later.")
	}
	return menu("Welcome! I am your finance assistant.\nChoose an action:")
}

// register makes sure the sender exists as a User. RegisterUser is
// find-or-create, so repeating it is harmless.
func (c *Conversation) register(ctx context.Context, msg Message) error {
	_, created, err := c.ledger.RegisterUser(ctx, msg.UserID, msg.Username)
	if err != nil {
		return err
	}
	if created {
		c.logger.Info("User registered", log.FieldTelegramID, msg.UserID, "username", msg.Username)
	}
	return nil
}

func (c *Conversation) chooseCategory(ctx context.Context, logger *log.Logger, s *session, name string) Reply {
	s.reset()

	category, err := c.ledger.CategoryByName(ctx, name)
	if err != nil {
		logger.Error("Category lookup failed", log.FieldError, err, "category", name)
		if core.KindOf(err) == core.KindNotFound {
			return menu("No " + name + " category yet. Ask an administrator to run the seed command.")
		}
		return menu("Something went wrong, please try again.")
	}

	subs, err := c.ledger.Subcategories(ctx, category.ID)
	if err != nil {
		logger.Error("Subcategory lookup failed", log.FieldError, err, log.FieldCategoryID, category.ID)
		return menu("Something went wrong, please try again.")
	}
	if len(subs) == 0 {
		return menu("The " + name + " category has no subcategories.")
	}

	s.stage = stageSubcategory
	s.category = category
	s.subcategories = subs
	return Reply{Text: "Choose a subcategory:", Keyboard: subcategoryKeyboard(subs)}
}

func (c *Conversation) chooseSubcategory(s *session, text string) Reply {
	if text == ButtonBack {
		s.reset()
		return menu("Choose an action:")
	}
	for _, sub := range s.subcategories {
		if sub.Name == text {
			s.subcategory = sub
			s.stage = stageAmount
			return Reply{Text: "Enter the amount:", Keyboard: [][]string{{ButtonBack}}}
		}
	}
	return Reply{Text: "Subcategory not found."}
}

func (c *Conversation) enterAmount(ctx context.Context, logger *log.Logger, s *session, msg Message, text string) Reply {
	if text == ButtonBack {
		s.stage = stageSubcategory
		return Reply{Text: "Choose a subcategory:", Keyboard: subcategoryKeyboard(s.subcategories)}
	}

	amount, comment, err := parseAmountLine(text)
	if err != nil {
		return Reply{Text: "Please enter a valid amount, e.g. 12.50 or 12,50."}
	}

	if err := c.register(ctx, msg); err != nil {
		logger.Error("User registration failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		return Reply{Text: "Could not save the transaction, please try again."}
	}

	tx, err := c.ledger.RecordTransaction(ctx, core.Transaction{
		UserTelegramID: msg.UserID,
		CategoryID:     s.category.ID,
		SubcategoryID:  s.subcategory.ID,
		Amount:         amount,
		Comment:        comment,
	})
	if err != nil {
		if core.KindOf(err) == core.KindValidation {
			return Reply{Text: "Could not save the transaction: " + err.Error()}
		}
		logger.Error("Transaction not saved", log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		return Reply{Text: "Could not save the transaction, please try again."}
	}

	logger.Info("Transaction saved", log.FieldRecordID, tx.ID, log.FieldAmount, tx.Amount.String())
	text = fmt.Sprintf("Saved %s %s: %s.", strings.ToLower(s.category.Name), s.subcategory.Name, tx.Amount.StringFixed(2))
	s.reset()
	return menu(text)
}

func (c *Conversation) report(ctx context.Context, logger *log.Logger, s *session, msg Message, label, token string) Reply {
	s.reset()

	summary, rows, err := c.ledger.Summary(ctx, token, core.Filters{"user_telegram_id": msg.UserID})
	if err != nil {
		logger.Error("Report failed", log.FieldError, err, log.FieldPeriod, token, log.FieldOperation, log.OpReport)
		return menu("Could not build the report, please try again.")
	}
	return menu(formatReport(label, summary, rows))
}

func (s *session) reset() {
	s.dialogue = dialogue{}
}

// parseAmountLine splits "12,50 lunch" into an amount and an optional
// comment.
func parseAmountLine(text string) (amount decimal.Decimal, comment string, err error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return amount, "", core.ErrInvalidAmount
	}
	amount, err = core.ParseAmount(fields[0])
	if err != nil {
		return amount, "", err
	}
	comment = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), fields[0]))
	return amount, comment, nil
}

func periodToken(label string) (string, bool) {
	for _, p := range periodButtons {
		if p.label == label {
			return p.token, true
		}
	}
	return "", false
}

func formatReport(label string, summary core.ReportSummary, rows []core.TransactionView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report: %s\n", label)
	if summary.Count == 0 {
		b.WriteString("No transactions in this period.")
		return b.String()
	}

	fmt.Fprintf(&b, "Income: %s\n", summary.Income.StringFixed(2))
	fmt.Fprintf(&b, "Expense: %s\n", summary.Expense.StringFixed(2))
	fmt.Fprintf(&b, "Balance: %s\n", summary.Balance().StringFixed(2))
	fmt.Fprintf(&b, "Transactions: %d\n", summary.Count)

	b.WriteString("\nLatest:")
	for i := len(rows) - 1; i >= 0 && i >= len(rows)-latestRows; i-- {
		r := rows[i]
		fmt.Fprintf(&b, "\n%s %s/%s %s", r.Date.Format("2006-01-02"), r.CategoryName, r.SubcategoryName, r.Amount.StringFixed(2))
		if r.Comment != "" {
			fmt.Fprintf(&b, " (%s)", r.Comment)
		}
	}
	return b.String()
}

func menu(text string) Reply {
	return Reply{Text: text, Keyboard: mainKeyboard()}
}

func mainKeyboard() [][]string {
	return [][]string{
		{ButtonIncome, ButtonExpense},
		{ButtonReport, ButtonHelp},
	}
}

func subcategoryKeyboard(subs []core.Subcategory) [][]string {
	rows := make([][]string, 0, len(subs)+1)
	for _, sub := range subs {
		rows = append(rows, []string{sub.Name})
	}
	return append(rows, []string{ButtonBack})
}

func periodKeyboard() [][]string {
	return [][]string{
		{periodButtons[0].label, periodButtons[1].label},
		{periodButtons[2].label, periodButtons[3].label},
		{periodButtons[4].label},
		{ButtonBack},
	}
}
